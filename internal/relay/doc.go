// Package relay owns all live sessions and rooms and routes control
// messages between them.
//
// The relay keeps two independent registries, id to session state and room
// id to member set, behind a single mutex. Holding one lock for every
// mutation keeps the cyclic session/room back-references consistent under
// concurrent joins, leaves, and disconnects, and guarantees the two
// structural invariants:
//
//   - no room with an empty member set persists
//   - a session's room id, when set, names a room whose member set
//     contains that session
//
// Outbound delivery goes through the Sender interface, which must never
// block. Broadcast fan-out therefore runs under the registry lock without
// a slow or dead peer being able to stall other members.
//
// State is never persisted; a session exists from Register to Disconnect
// and a room from its creation to the departure of its last member.
package relay
