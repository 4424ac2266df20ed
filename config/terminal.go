package config

const (
	DriverSim   = "sim"
	DriverBybit = "bybit"
	DriverNone  = "none"
)

// TerminalConfig selects the terminal driver and carries its login settings.
type TerminalConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Login    int64  `mapstructure:"login"`
	Password string `mapstructure:"password"`
	Server   string `mapstructure:"server"`

	// PasswordParameter names an SSM parameter holding the password in prod.
	PasswordParameter string `mapstructure:"password_parameter"`
}

// Credentials is what a driver needs to log into the terminal.
type Credentials struct {
	Path     string
	Login    int64
	Password string
	Server   string
}

// Credentials resolves the terminal login. In prod an empty password is
// looked up in AWS Parameter Store under PasswordParameter.
func (t TerminalConfig) Credentials(env string) Credentials {
	password := t.Password
	if env == "prod" && password == "" && t.PasswordParameter != "" {
		password = getParameterStoreValue(t.PasswordParameter, true)
	}
	return Credentials{
		Path:     t.Path,
		Login:    t.Login,
		Password: password,
		Server:   t.Server,
	}
}
