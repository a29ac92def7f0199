package srt

// Options are the telemetry text overlay settings for one render.
type Options struct {
	// Position as a percentage of the canvas dimensions.
	PositionX float64 `yaml:"positionX"`
	PositionY float64 `yaml:"positionY"`

	// Font scale relative to a 1080 pixel tall canvas.
	Scale float64 `yaml:"scale"`

	ShowTime      bool `yaml:"showTime"`
	ShowSkyBat    bool `yaml:"showSkyBat"`
	ShowGroundBat bool `yaml:"showGroundBat"`
	ShowSignal    bool `yaml:"showSignal"`
	ShowLatency   bool `yaml:"showLatency"`
	ShowBitrate   bool `yaml:"showBitrate"`
	ShowDistance  bool `yaml:"showDistance"`
	ShowChannel   bool `yaml:"showChannel"`
	ShowFrequency bool `yaml:"showFrequency"`
	ShowSp        bool `yaml:"showSp"`
	ShowGp        bool `yaml:"showGp"`
	ShowAirTemp   bool `yaml:"showAirTemp"`
	ShowGndTemp   bool `yaml:"showGndTemp"`
	ShowSTYMode   bool `yaml:"showSTYMode"`
}

// DefaultOptions returns the default telemetry overlay settings.
func DefaultOptions() *Options {
	return &Options{
		PositionX:     1.5,
		PositionY:     94.0,
		Scale:         34.0,
		ShowSkyBat:    true,
		ShowGroundBat: true,
		ShowSignal:    true,
		ShowBitrate:   true,
		ShowDistance:  true,
		ShowChannel:   true,
		ShowAirTemp:   true,
		ShowGndTemp:   true,
	}
}
