// Package clients provides the HTTP client of the backup server and DNS SRV
// discovery of backup server instances.
//
// # Usage Example
//
//	urls, err := clients.ResolveBackupServers(ctx, "_backup._tcp.example.com", "", "https")
//	if err != nil {
//		return err
//	}
//	client := clients.NewBackupClient(urls[0])
//	resp, err := client.Upload(ctx, bundle.Files())
package clients
