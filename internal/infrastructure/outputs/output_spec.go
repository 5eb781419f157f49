package outputs

// OutputSpec describes the output to create at startup.
type OutputSpec struct {
	Type     string
	Host     string
	Port     int
	Compress bool
	Config   Config
}

// ConfigWithDefaults returns a copy of Config with host, port and compression set.
func (s OutputSpec) ConfigWithDefaults() Config {
	cfg := make(Config, len(s.Config)+3)
	for k, v := range s.Config {
		cfg[k] = v
	}
	if s.Host != "" {
		cfg["host"] = s.Host
	}
	if s.Port != 0 {
		cfg["port"] = s.Port
	}
	if _, ok := cfg["compress"]; !ok {
		cfg["compress"] = s.Compress
	}
	return cfg
}
