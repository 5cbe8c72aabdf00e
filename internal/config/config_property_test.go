//go:build property
// +build property

package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConfigurationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1337)
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ports in range validate, ports outside fail", prop.ForAll(
		func(port int) bool {
			cfg := Default()
			cfg.Server.Port = port
			result := Validate(cfg)
			inRange := port >= 0 && port <= 65535
			return result.Valid == inRange
		},
		gen.IntRange(-70000, 140000),
	))

	properties.Property("validation never panics and Err matches Valid", prop.ForAll(
		func(host string, images, history int, ttl int64) bool {
			cfg := Default()
			cfg.Server.Host = host
			cfg.Chat.MaxImages = images
			cfg.Chat.HistoryLimit = history
			cfg.Alerts.TTL = time.Duration(ttl)

			result := Validate(cfg)
			return (result.Err() == nil) == result.Valid
		},
		gen.AnyString(),
		gen.IntRange(-5, 30),
		gen.IntRange(-5, 2000),
		gen.Int64Range(-int64(time.Second), int64(time.Minute)),
	))

	properties.Property("http origins with host are accepted", prop.ForAll(
		func(sub string, port int) bool {
			cfg := Default()
			cfg.Server.AllowedOrigins = []string{fmt.Sprintf("https://%s.example.com:%d", sub, port)}
			return Validate(cfg).Valid
		},
		gen.RegexMatch(`^[a-z][a-z0-9]{0,10}$`),
		gen.IntRange(1, 65535),
	))

	properties.TestingRun(t)
}
