package config

type Config struct {
	Controller Controller `yaml:"controller"`
	Redis      Redis      `yaml:"redis"`
	NAC        NAC        `yaml:"nac"`
	CoinSlot   CoinSlot   `yaml:"coinslot"`
	Sweep      Sweep      `yaml:"sweep"`
}

type Controller struct {
	Name string `yaml:"name"`
	Bind struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"bind"`
	Admin struct {
		PasswordRef  string `yaml:"password"`
		JWTSecretRef string `yaml:"jwt_secret"`
		TokenTTLSec  int    `yaml:"token_ttl_sec"`
	} `yaml:"admin"`
	Audit struct {
		Enabled   bool   `yaml:"enabled"`
		SecretRef string `yaml:"secret_ref"`
	} `yaml:"audit"`
}

type Redis struct {
	// Host empty means standalone mode: sessions and vouchers live in
	// process memory and do not survive a restart.
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DB      int    `yaml:"db"`
	Prefix  string `yaml:"prefix"`
	AuthRef string `yaml:"auth_ref"`
}

type NAC struct {
	Binary     string `yaml:"binary"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type CoinSlot struct {
	PulseSecretRef string `yaml:"pulse_secret"`
}

type Sweep struct {
	IntervalSec   int `yaml:"interval_sec"`
	ReassertEvery int `yaml:"reassert_every"`
}
