package config

// Config represents the slsaverify CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Verify VerifyConfig `mapstructure:"verify"`
}

// VerifyConfig holds the default verification options a config file or
// environment can pin, overridable per-invocation by flags.
type VerifyConfig struct {
	RequireSET      bool   `mapstructure:"require_set"`
	FulcioInstance  string `mapstructure:"fulcio_instance"`
	ExpectedIssuer  string `mapstructure:"expected_issuer"`
	ExpectedSubject string `mapstructure:"expected_subject"`
}
