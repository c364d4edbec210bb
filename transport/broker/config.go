package broker

// Config describes one broker-backed transport instance. URI is the
// AMQP 0-9-1 connection string. Exchange is optional: when
// set, it's declared as a durable topic exchange and BindingKeys are bound
// to it in addition to the always-present `extractors.<name>` binding.
type Config struct {
	URI           string
	ExtractorName string
	Exchange      string
	BindingKeys   []string
}

func (c Config) queueName() string      { return c.ExtractorName }
func (c Config) errorQueueName() string { return "error." + c.ExtractorName }
func (c Config) extractorBindingKey() string {
	return "extractors." + c.ExtractorName
}
