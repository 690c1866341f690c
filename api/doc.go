/*
Package api holds the wire contract of the backup server and its client.

The server side lives in the httpserver package and is configured with
HTTPServerConfig. The clients subpackage talks to it.

# Endpoints

	POST /api/backup                       multipart form, three "file" parts
	GET  /api/backup/{name}                one stored bundle file
	GET  /api/backup/{fingerprint}/cid     content identifier of the latest backup
	GET  /livez, /readyz, /drain, /undrain health and load balancer control

An upload is accepted with 201 and an UploadResponse. A bundle that fails
authorization gets 403, a malformed request 400 and a fingerprint exceeding
its upload rate 429. Error bodies are ErrorResponse values.
*/
package api
