// Package config loads process-wide settings: env-first with file fallback,
// defaults suitable for the public QLD MapServer.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	APIKey          string
	DBPath          string
	MapServerBase   string
	AddressLayer    int
	ParcelsLayer    int
	ArcGISToken     string
	UpstreamTimeout time.Duration
	MaxRetries      int
	MaxResults      int
	BatchSize       int
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	_ = v.ReadInConfig()

	return Config{
		Port:            v.GetString("server.port"),
		APIKey:          v.GetString("x.api.key"),
		DBPath:          v.GetString("server.db_path"),
		MapServerBase:   v.GetString("qld.mapserver.base"),
		AddressLayer:    v.GetInt("qld.address.layer"),
		ParcelsLayer:    v.GetInt("qld.parcels.layer"),
		ArcGISToken:     v.GetString("arcgis.auth.token"),
		UpstreamTimeout: v.GetDuration("upstream.timeout"),
		MaxRetries:      v.GetInt("upstream.max_retries"),
		MaxResults:      v.GetInt("upstream.max_results"),
		BatchSize:       v.GetInt("parcel.batch.size"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.db_path", "")
	v.SetDefault("x.api.key", "")
	v.SetDefault("qld.mapserver.base", "https://spatial-gis.information.qld.gov.au/arcgis/rest/services/PlanningCadastre/LandParcelPropertyFramework/MapServer")
	v.SetDefault("qld.address.layer", 0)
	v.SetDefault("qld.parcels.layer", 4)
	v.SetDefault("arcgis.auth.token", "")
	v.SetDefault("upstream.timeout", 8*time.Second)
	v.SetDefault("upstream.max_retries", 2)
	v.SetDefault("upstream.max_results", 1000)
	v.SetDefault("parcel.batch.size", 25)
}
