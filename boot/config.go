package boot

import (
	"os"

	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/log"
)

// ConfigEnv names the environment variable consulted when no config path is given.
const ConfigEnv = "LOGSINK_CONFIG"

// ConfigPath returns flagPath when set, else the value of ConfigEnv.
// An empty result means built-in defaults.
func ConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(ConfigEnv)
}

// LoadConfig loads the configuration at path, or returns conf.Default()
// when path is empty.
func LoadConfig(path string) (*conf.Logsink, error) {
	if path == "" {
		return conf.Default(), nil
	}
	return conf.Load(path)
}

// InitLogger installs the process logger described by c.
func InitLogger(c *conf.Logsink) error {
	if err := log.InitLogger(log.Options{
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Service: c.Name,
	}); err != nil {
		return err
	}
	log.Debugf("logger initialized at level %s", c.Log.Level)
	return nil
}
