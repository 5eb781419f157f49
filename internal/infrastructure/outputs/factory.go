package outputs

// Factory creates an Output from config.
// Each transport (udp, tcp) implements and registers a Factory.
// ConfigSpec declares which configuration fields this output type reads.
type Factory interface {
	Name() string
	ConfigSpec() OutputTypeInfo
	Create(cfg Config) (Output, error)
}
