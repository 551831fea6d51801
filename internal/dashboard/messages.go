package dashboard

// staticMsg carries host facts that only change with the server.
type staticMsg struct {
	epoch uint64
	info  staticInfo
	err   error
}
