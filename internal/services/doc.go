// Package services implements the HTTP side of the separation backend: upload, status and stem download.
//
// # Endpoints
//
//	POST /api/upload                       multipart field "file" → {"job_id": "..."}
//	GET  /api/status/{job_id}              → {"status": "processing"|"complete"|"error", "job_id": "...", "error": "..."}
//	GET  /api/download/{stem}/{job_id}     → audio body, or {"error": "..."}
//
// [Client] implements [Separator]. Uploads are validated locally first (size and extension, see [ValidateFile]) so a
// rejected file never reaches the network.
//
// # Error Handling
//
// Every failure is returned as an [*Error] whose message is safe to show to the user and which wraps one of the
// shared sentinels:
//   - [shared.ErrValidation] : local file checks
//   - [shared.ErrUpload] : upload rejected or unparseable
//   - [shared.ErrStatus] : status check failed
//   - [shared.ErrDownload] : stem download failed
//
// [Message] extracts the user-facing text from any error.
//
// # Authentication
//
// [NewHTTPClient] wraps a static bearer token in an [oauth2.Transport] when the backend sits behind a gateway.
package services
