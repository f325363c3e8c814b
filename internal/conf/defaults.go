package conf

import "github.com/spf13/viper"

// setDefaultSettings registers baseline values with viper so that partial
// config files and environment overrides always resolve to a complete
// Settings struct.
func setDefaultSettings() {
	viper.SetDefault("debug", false)

	// Audio input
	viper.SetDefault("audio.source", "")
	viper.SetDefault("audio.channels", 3)

	// Detection
	viper.SetDefault("detection.modelpath", "models/drone_detector.tflite")
	viper.SetDefault("detection.threshold", 0.70)
	viper.SetDefault("detection.longaudiocutoff", 10.0)
	viper.SetDefault("detection.threads", 0)
	viper.SetDefault("detection.usexnnpack", true)

	// Localization
	viper.SetDefault("localization.speedofsound", 343.0)
	viper.SetDefault("localization.maxmicseparation", 2.0)
	viper.SetDefault("localization.positionbound", 10.0)
	viper.SetDefault("localization.defaultpoint", map[string]any{"x": 1.0, "y": 1.0})
	viper.SetDefault("localization.micpositions", []map[string]any{
		{"x": 0.0, "y": 0.0},
		{"x": 0.5, "y": 0.0},
		{"x": 0.0, "y": 0.5},
	})

	// Realtime monitoring
	viper.SetDefault("monitor.interval", 2.0)
	viper.SetDefault("monitor.simulate", false)

	// MQTT
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "dronewatch/detections")
	viper.SetDefault("mqtt.clientid", "dronewatch-go")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	// Web server
	viper.SetDefault("web.port", "8080")
	viper.SetDefault("web.logpath", "logs/web.log")
}
