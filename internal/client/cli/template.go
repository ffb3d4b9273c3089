package cli

const usageTemplate = `
PeerSync Client

Usage:
  peersync [OPTIONS] COMMAND [ARGS]

Options:
  --version               Show version information
  --config PATH           Path to config file (default: env and built-in defaults)
  --api URL               Control API URL (default: from api.listen)
  --token-file PATH       Control API token (default: <data_dir>/api.token)
  --passphrase-file PATH  File containing the account passphrase

Passphrase Priority (highest to lowest):
  1. PEERSYNC_PASSPHRASE environment variable
  2. --passphrase-file (file path)
  3. Interactive prompt (fallback)

Commands:
  init [--account NAME] [--salt B64]   Create node identity (offline)
  status                               Show node status
  put [--type T] [--file F] ID [TEXT]  Create or update a record
  get [--raw] ID                       Show a record with its payload
  list [--deleted]                     List records
  delete ID                            Delete a record (tombstone)
  audit ID                             Show losing and rejected versions of a record
  peers                                List known devices of the account
  pin NODE_ID PUBLIC_KEY_HEX           Pin a device public key
  sync [--wait] [NODE_ID]              Start synchronization
  sessions [--limit N]                 Show sync session history
  session ID                           Show one sync session
  cancel ID                            Cancel an active session
  resume ID                            Resume an interrupted session
  config [KEY=VALUE ...]               Show or change sync settings
  export                               Print diagnostic export as JSON

Examples:
  peersync init --account alice_home
  peersync init --account alice_home --salt <salt from first device>
  peersync put notes/today "buy milk"
  peersync sync --wait
  peersync config sync_interval_ms=30000 auto_sync=true
`

const initTemplate = `
=== Node Initialized ===

Node ID:     {{.NodeID}}
Account:     {{.Account}}
Fingerprint: {{.Fingerprint}}
Salt:        {{.Salt}}

Initialize other devices of this account with the same passphrase and:
  peersync init --account {{.Account}} --salt {{.Salt}}
`

const statusTemplate = `
=== Node Status ===

Node ID:     {{.Node.NodeID}}
Account:     {{.Node.Account}}
Fingerprint: {{.Node.Fingerprint}}
Version:     {{.Node.Version}}
Digest:      {{.Digest}}
Records:     {{.Records}} ({{.Tombstones}} deleted)
Peers:       {{.OnlinePeers}}/{{.KnownPeers}} online
Pending:     {{.PendingWrite}} write(s)
Auto sync:   {{.Settings.AutoSync}} (every {{.Settings.SyncIntervalMs}} ms)
{{- if .Connections}}

Connections:
{{- range .Connections}}
  {{.NodeID}}  {{.State}}  {{.TransportKind}}  {{.LatencyMs}} ms
{{- end}}
{{- end}}
`

const recordTemplate = `
=== Record ===

ID:       {{.ID}}
Type:     {{.Type}}
Version:  {{.Version}}
Author:   {{.NodeID}}
Hash:     {{.ContentHash}}
{{- if .Deleted}}
Status:   deleted
{{- else}}

Payload:
---
{{printf "%s" .Payload}}
---
{{- end}}
`

const recordListTemplate = `
=== Records ===
{{- if eq (len .) 0}}

No records found.
{{- else}}

Found {{len .}} record(s):
{{range $i, $r := .}}
{{inc $i}}. {{$r.ID}}
   Type:    {{$r.Type}}
   Version: {{$r.Version}}
{{- if $r.Deleted}}
   Deleted: yes
{{- end}}
{{- end}}
{{- end}}
`

const savedTemplate = `Record {{.ID}} saved (version {{.Version}})
`

const deletedTemplate = `Record {{.ID}} deleted (version {{.Version}})
`

const auditTemplate = `
=== Audit ===
{{- if eq (len .) 0}}

No audit entries.
{{- else}}
{{range .}}
{{.CreatedAt.Format "2006-01-02 15:04:05"}}  {{.Reason}}
   Version: {{.Version}}
   Loser:   {{.LoserHash}} from {{.LoserNodeID}}
{{- if .WinnerHash}}
   Winner:  {{.WinnerHash}}
{{- end}}
{{- if .Detail}}
   Detail:  {{.Detail}}
{{- end}}
{{- end}}
{{- end}}
`

const peerListTemplate = `
=== Devices ===
{{- if eq (len .) 0}}

No known devices.
{{- else}}
{{range .}}
{{.ID}}
   Address:     {{.Address}}
   Online:      {{.Online}}
{{- if .Fingerprint}}
   Fingerprint: {{.Fingerprint}}
{{- end}}
{{- if .NeedsRepin}}
   WARNING: key changed, verify and run 'peersync pin'
{{- end}}
{{- if .Connection}}
   Connection:  {{.Connection.State}} {{.Connection.LatencyMs}} ms
{{- end}}
{{- end}}
{{- end}}
`

const pinnedTemplate = `Pinned {{.ID}} ({{.Fingerprint}})
`

const sessionListTemplate = `
=== Sync Sessions ===
{{- if eq (len .) 0}}

No sessions.
{{- else}}
{{range .}}
{{.ID}}  {{.State}}
   Node:    {{.NodeID}}
   Records: {{.RecordsTransferred}} ({{.BytesTransferred}} bytes)
{{- if .PartiallySynced}}
   Partially synced
{{- end}}
{{- end}}
{{- end}}
`

const sessionTemplate = `
=== Sync Session ===

ID:       {{.ID}}
Node:     {{.NodeID}}
State:    {{.State}}
Started:  {{.StartTime.Format "2006-01-02 15:04:05"}}
{{- if not .EndTime.IsZero}}
Finished: {{.EndTime.Format "2006-01-02 15:04:05"}}
{{- end}}
Records:  {{.RecordsTransferred}} ({{.BytesTransferred}} bytes)
{{- if .ResumedFrom}}
Resumed:  {{.ResumedFrom}}
{{- end}}
{{- if .Errors}}

Errors:
{{- range .Errors}}
  [{{.Kind}}] {{if .RecordID}}{{.RecordID}}: {{end}}{{.Message}}
{{- end}}
{{- end}}
{{- if .Warnings}}

Warnings:
{{- range .Warnings}}
  {{.}}
{{- end}}
{{- end}}
`

const settingsTemplate = `
=== Sync Settings ===

sync_interval_ms:    {{.SyncIntervalMs}}
max_connections:     {{.MaxConnections}}
data_retention_days: {{.DataRetentionDays}}
auto_sync:           {{.AutoSync}}
encryption_enabled:  {{.EncryptionEnabled}}
p2p_enabled:         {{.P2PEnabled}}
`
