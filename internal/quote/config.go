package quote

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Field is a record attribute the source understands.
type Field string

const (
	FieldCode       Field = "code"
	FieldDate       Field = "date"
	FieldPreclose   Field = "preclose"
	FieldOpen       Field = "open"
	FieldHigh       Field = "high"
	FieldLow        Field = "low"
	FieldLast       Field = "last"
	FieldVolume     Field = "volume"
	FieldAmount     Field = "amount"
	FieldUpdateTime Field = "update_time"
	FieldIOPV       Field = "iopv"
)

var requiredFields = []Field{FieldCode, FieldPreclose, FieldOpen, FieldHigh, FieldLow, FieldLast, FieldVolume, FieldAmount}

// FieldMap maps feed keys (e.g. "f12") to record attributes.
type FieldMap map[string]Field

// Key returns the feed key mapped to f.
func (m FieldMap) Key(f Field) (string, bool) {
	for k, v := range m {
		if v == f {
			return k, true
		}
	}
	return "", false
}

// FeedConfig describes one HTTP snapshot feed.
type FeedConfig struct {
	URL     string            `yaml:"url" validate:"required,url"`
	Params  map[string]string `yaml:"params"`
	Headers map[string]string `yaml:"headers"`
	Fields  FieldMap          `yaml:"fields" validate:"required"`

	// FieldsParam receives the comma-joined feed keys; empty disables it.
	FieldsParam string `yaml:"fields_param"`
	// TimestampParam receives the request time in milliseconds; empty disables it.
	TimestampParam string `yaml:"timestamp_param"`
	// RecordsPath is the chain of object keys leading to the record container.
	RecordsPath []string `yaml:"records_path"`

	// VolumeMultiplier converts feed volume units into store units.
	VolumeMultiplier float64       `yaml:"volume_multiplier" validate:"gt=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	// RatePerSecond caps feed requests; 0 disables the limiter.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
}

// DefaultFeedConfig returns the eastmoney ETF list profile.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		URL: "http://push2.eastmoney.com/api/qt/clist/get",
		Params: map[string]string{
			"pn":    "1",
			"pz":    "2000",
			"po":    "1",
			"np":    "1",
			"ut":    "bd1d9ddb04089700cf9c27f6f7426281",
			"fltt":  "2",
			"invt":  "2",
			"dect":  "1",
			"wbp2u": "|0|0|0|web",
			"fid":   "f5",
			"fs":    "b:MK0023",
		},
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
		},
		Fields: FieldMap{
			"f12":  FieldCode,
			"f297": FieldDate,
			"f18":  FieldPreclose,
			"f17":  FieldOpen,
			"f15":  FieldHigh,
			"f16":  FieldLow,
			"f2":   FieldLast,
			"f5":   FieldVolume,
			"f6":   FieldAmount,
			"f124": FieldUpdateTime,
			"f441": FieldIOPV,
		},
		FieldsParam:      "fields",
		TimestampParam:   "_",
		RecordsPath:      []string{"data", "diff"},
		VolumeMultiplier: 100, // lots to shares
		Timeout:          10 * time.Second,
		RatePerSecond:    1,
	}
}

// LoadFeedConfig reads a YAML feed profile. Fields left empty take the defaults.
func LoadFeedConfig(path string) (FeedConfig, error) {
	var c FeedConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse feed config %s: %w", path, err)
	}
	c.fillDefaults()
	return c, c.Validate()
}

func (c *FeedConfig) fillDefaults() {
	d := DefaultFeedConfig()
	if c.URL == "" {
		c.URL = d.URL
		if c.Params == nil {
			c.Params = d.Params
		}
		if c.FieldsParam == "" {
			c.FieldsParam = d.FieldsParam
		}
		if c.TimestampParam == "" {
			c.TimestampParam = d.TimestampParam
		}
	}
	if c.Headers == nil {
		c.Headers = d.Headers
	}
	if len(c.Fields) == 0 {
		c.Fields = d.Fields
	}
	if len(c.RecordsPath) == 0 {
		c.RecordsPath = d.RecordsPath
	}
	if c.VolumeMultiplier == 0 {
		c.VolumeMultiplier = d.VolumeMultiplier
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
}

// Validate checks that every attribute needed to build a quote is mapped.
func (c FeedConfig) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("feed url is empty"))
	}
	for _, f := range requiredFields {
		if _, ok := c.Fields.Key(f); !ok {
			errs = append(errs, fmt.Errorf("field %q is not mapped", f))
		}
	}
	if c.VolumeMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("volume multiplier must be positive, got %v", c.VolumeMultiplier))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}
