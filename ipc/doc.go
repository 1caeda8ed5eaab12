// Package ipc is the transport used by unification and clock synchronization.
//
// A Communicator offers blocking point-to-point messages between ranks.
// Collectives (Broadcast, Gather, Reduce, AllReduce) are built on top of it.
// Single returns the communicator of a run with one process, in which every
// collective completes immediately. World connects n ranks inside one process
// and is what RunLocal and the tests use.
package ipc
