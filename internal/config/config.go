// Package config loads settings from configs/config.yml, an optional .env file
// and BATTERY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"battery_scheduler/internal/device"
	"battery_scheduler/internal/models"
	"battery_scheduler/internal/optimizer"
	"battery_scheduler/internal/prices"
	"battery_scheduler/internal/publish"
	"battery_scheduler/internal/trigger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BATTERY"

type Config struct {
	Port     string `mapstructure:"port"`
	Timezone string `mapstructure:"timezone"`

	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Device    DeviceConfig    `mapstructure:"device"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Evening   EveningConfig   `mapstructure:"evening"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type DeviceConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	UnitID      int           `mapstructure:"unit_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TOURegister int           `mapstructure:"tou_register"`
	SOCRegister int           `mapstructure:"soc_register"`
}

type PricesConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Region  string        `mapstructure:"region"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OptimizerConfig struct {
	NightWindow     optimizer.Window `mapstructure:"night_window"`
	DayWindow       optimizer.Window `mapstructure:"day_window"`
	ChargeHours     int              `mapstructure:"charge_hours"`
	DischargeHours  int              `mapstructure:"discharge_hours"`
	DayAwareOverlap bool             `mapstructure:"day_aware_overlap"`
	PreserveFactor  float64          `mapstructure:"preserve_factor"`
}

type EveningConfig struct {
	Start          int     `mapstructure:"start"`
	End            int     `mapstructure:"end"`
	NextDayStart   int     `mapstructure:"next_day_start"`
	NextDayEnd     int     `mapstructure:"next_day_end"`
	MinSOC         float64 `mapstructure:"min_soc"`
	DischargeRate  float64 `mapstructure:"discharge_rate"`
	PriceThreshold float64 `mapstructure:"price_threshold"`
}

// ScheduleConfig holds the daily HH:MM trigger clocks. Empty disables a mode.
type ScheduleConfig struct {
	Regular string `mapstructure:"regular"`
	Evening string `mapstructure:"evening"`
}

type MQTTConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Broker   string        `mapstructure:"broker"`
	ClientID string        `mapstructure:"client_id"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Topic    string        `mapstructure:"topic"`
	QoS      int           `mapstructure:"qos"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	// AllowSignUp keeps sign-up open once a user exists.
	AllowSignUp bool `mapstructure:"allow_sign_up"`
}

func setDefaults(v *viper.Viper) {
	opts := optimizer.DefaultOptions()
	eve := optimizer.DefaultEveningOptions()

	v.SetDefault("port", "8080")
	v.SetDefault("timezone", prices.DefaultZone)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("db.path", "battery_scheduler.db")

	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("device.host", "")
	v.SetDefault("device.port", device.DefaultPort)
	v.SetDefault("device.unit_id", device.DefaultUnitID)
	v.SetDefault("device.timeout", device.DefaultTimeout)
	v.SetDefault("device.tou_register", device.DefaultTOURegister)
	v.SetDefault("device.soc_register", device.DefaultSOCRegister)

	v.SetDefault("prices.base_url", prices.DefaultBaseURL)
	v.SetDefault("prices.region", prices.DefaultRegion)
	v.SetDefault("prices.timeout", prices.DefaultTimeout)

	v.SetDefault("optimizer.night_window.start", opts.NightWindow.Start)
	v.SetDefault("optimizer.night_window.end", opts.NightWindow.End)
	v.SetDefault("optimizer.day_window.start", opts.DayWindow.Start)
	v.SetDefault("optimizer.day_window.end", opts.DayWindow.End)
	v.SetDefault("optimizer.charge_hours", opts.ChargeHours)
	v.SetDefault("optimizer.discharge_hours", opts.DischargeHours)
	v.SetDefault("optimizer.day_aware_overlap", opts.DayAwareOverlap)
	v.SetDefault("optimizer.preserve_factor", opts.PreserveFactor)

	v.SetDefault("evening.start", eve.EveningStart)
	v.SetDefault("evening.end", eve.EveningEnd)
	v.SetDefault("evening.next_day_start", eve.NextDayStart)
	v.SetDefault("evening.next_day_end", eve.NextDayEnd)
	v.SetDefault("evening.min_soc", eve.MinSOC)
	v.SetDefault("evening.discharge_rate", eve.DischargeRate)
	v.SetDefault("evening.price_threshold", eve.PriceThreshold)

	v.SetDefault("schedule.regular", "14:00")
	v.SetDefault("schedule.evening", "17:00")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", publish.DefaultClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", publish.DefaultTopic)
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.timeout", publish.DefaultTimeout)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.allow_sign_up", false)
}

// Load reads path, or configs/config.yml when path is empty. A missing default
// file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks everything that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if err := c.OptimizerOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.EveningOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Device.Host) == "" {
		errs = append(errs, errors.New("device.host is required"))
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		errs = append(errs, fmt.Errorf("device port %d out of range", c.Device.Port))
	}
	if c.Device.UnitID < 0 || c.Device.UnitID > 247 {
		errs = append(errs, fmt.Errorf("device unit id %d out of range", c.Device.UnitID))
	}
	if c.Device.TOURegister < 0 || c.Device.TOURegister > 0xFFFF || c.Device.SOCRegister < 0 || c.Device.SOCRegister > 0xFFFF {
		errs = append(errs, errors.New("device registers must fit in 16 bits"))
	}
	if _, err := c.TriggerJobs(); err != nil {
		errs = append(errs, err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos %d: must be 0..2", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		NightWindow:     c.Optimizer.NightWindow,
		DayWindow:       c.Optimizer.DayWindow,
		ChargeHours:     c.Optimizer.ChargeHours,
		DischargeHours:  c.Optimizer.DischargeHours,
		DayAwareOverlap: c.Optimizer.DayAwareOverlap,
		PreserveFactor:  c.Optimizer.PreserveFactor,
	}
}

func (c *Config) EveningOptions() optimizer.EveningOptions {
	return optimizer.EveningOptions{
		EveningStart:   c.Evening.Start,
		EveningEnd:     c.Evening.End,
		NextDayStart:   c.Evening.NextDayStart,
		NextDayEnd:     c.Evening.NextDayEnd,
		MinSOC:         c.Evening.MinSOC,
		DischargeRate:  c.Evening.DischargeRate,
		PriceThreshold: c.Evening.PriceThreshold,
	}
}

func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		Host:        c.Device.Host,
		Port:        c.Device.Port,
		UnitID:      byte(c.Device.UnitID),
		Timeout:     c.Device.Timeout,
		TOURegister: uint16(c.Device.TOURegister),
		SOCRegister: uint16(c.Device.SOCRegister),
	}
}

func (c *Config) PricesConfig() prices.Config {
	return prices.Config{
		BaseURL: c.Prices.BaseURL,
		Region:  c.Prices.Region,
		Zone:    c.Location(),
		Timeout: c.Prices.Timeout,
	}
}

func (c *Config) PublishConfig() publish.Config {
	return publish.Config{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		Topic:    c.MQTT.Topic,
		QoS:      byte(c.MQTT.QoS),
		Timeout:  c.MQTT.Timeout,
	}
}

// TriggerJobs parses the schedule clocks, skipping empty ones.
func (c *Config) TriggerJobs() ([]trigger.Job, error) {
	var jobs []trigger.Job
	for _, s := range []struct {
		clock string
		job   trigger.Job
	}{
		{c.Schedule.Regular, trigger.Job{Mode: models.ModeRegular}},
		{c.Schedule.Evening, trigger.Job{Mode: models.ModeEvening}},
	} {
		if strings.TrimSpace(s.clock) == "" {
			continue
		}
		clk, err := trigger.ParseClock(strings.TrimSpace(s.clock))
		if err != nil {
			return nil, fmt.Errorf("schedule.%s: %w", s.job.Mode, err)
		}
		s.job.Clock = clk
		jobs = append(jobs, s.job)
	}
	return jobs, nil
}
