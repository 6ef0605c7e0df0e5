// Package crawler defines the domain types, collaborator interfaces, and error
// taxonomy shared by the staff-directory pipeline: seeds, fetched documents,
// raw tables, canonical personnel records, and the checkpoint/error-log contracts.
package crawler
