// Package alarm persists pending reminder records keyed by
// (event UID, recipient). Two backends exist: a mutex-guarded map for
// single-process deployments and a MongoDB collection shared by all
// scheduler replicas in a cluster.
package alarm
