package dap

// LaunchConfig is the collection of launch request attributes this adapter
// recognizes. Per spec.md §6, the simulation response and sources descriptor
// paths are normally supplied through environment variables rather than the
// launch request, but an IDE may override either for a multi-trace workspace.
type LaunchConfig struct {
	// SimulationResponsePath overrides ALGORAND_SIMULATION_RESPONSE_PATH.
	SimulationResponsePath string `json:"simulationResponsePath,omitempty"`
	// SourcesDescriptorPath overrides ALGORAND_TXN_GROUP_SOURCES_DESCRIPTION_PATH.
	SourcesDescriptorPath string `json:"sourcesDescriptorPath,omitempty"`
	// StopOnEntry automatically stops the session at the first opcode event.
	StopOnEntry bool `json:"stopOnEntry,omitempty"`
	// StackTraceDepth is the maximum length of the returned stack frame list.
	StackTraceDepth int `json:"stackTraceDepth,omitempty"`
}
