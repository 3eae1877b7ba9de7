/*
Package ddns keeps a single DNS A-record pointed at the host's current public IP address.

Usage will always start with [ddns.New],
which returns a [Client] for one record name.
New requires a [Provider] implementation for a DNS provider, such as [UsingGoDaddy] or [UsingCloudflare].
Additional client configuration options are listed in the docs for New.

Each call to [Client.RunDDNS] performs one reconciliation cycle:
the provider's record is read once and cached,
the public IP is resolved,
and the record is only written when the two differ.
The cached value is advanced only after the provider accepts the write.
[RunDaemon] runs cycles on a schedule.
*/
package ddns
