// Package repositories provides the sqlite persistence layer for job history.
//
// [JobRepository] implements models.Repository[*models.Job] plus the recording hooks the tracker calls as a job is
// submitted and finishes. Schema changes live in the shared package's embedded migrations.
package repositories
