package model

// params for Flags
type CommandLineFlags struct {
	Config  *string `json:"config"`
	Host    *string `json:"host"`
	Port    *string `json:"port"`
	Format  *string `json:"format"`
	Stdin   *bool   `json:"stdin"`
	Clean   *string `json:"clean"`
	Verbose *bool   `json:"verbose"`
}
