package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Room     RoomConfig     `mapstructure:"room"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MonitorAddress string `mapstructure:"monitor_address"`
	Development    bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	// Driver selects the account store implementation: "gorm" or "sql".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	BoardSize int          `mapstructure:"board_size"`
	Links     []LinkConfig `mapstructure:"links"`
}

// LinkConfig is one board link; To < From is a snake, To > From a ladder.
type LinkConfig struct {
	From int `mapstructure:"from"`
	To   int `mapstructure:"to"`
}

type RoomConfig struct {
	MaxPlayers     int           `mapstructure:"max_players"`
	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
	FinishedGrace  time.Duration `mapstructure:"finished_grace"`
	WaitingIdle    time.Duration `mapstructure:"waiting_idle"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.monitor_address", ":9090")
	viper.SetDefault("server.development", false)
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("game.board_size", 100)
	viper.SetDefault("room.max_players", 4)
	viper.SetDefault("room.reconnect_grace", time.Minute)
	viper.SetDefault("room.finished_grace", 30*time.Second)
	viper.SetDefault("room.waiting_idle", 5*time.Minute)
	viper.SetDefault("room.sweep_interval", 10*time.Second)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// LinkTable converts the configured links into the board's map form.
func (g GameConfig) LinkTable() map[int]int {
	if len(g.Links) == 0 {
		return nil
	}
	links := make(map[int]int, len(g.Links))
	for _, l := range g.Links {
		links[l.From] = l.To
	}
	return links
}
