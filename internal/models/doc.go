// Package models defines the persisted entities of the separation client.
//
// [Job] records an upload submitted from this machine: the backend job id, the source filename, the final status
// and the paths the stems were saved to. It implements [Model]; [Repository] is the CRUD contract implemented in
// the repositories package.
package models
