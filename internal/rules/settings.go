package rules

// Settings holds the tunable thresholds of the limit-style checks.
type Settings struct {
	MaxLineLength     int
	MaxPlays          int
	MaxTasksPerPlay   int
	MaxBlockTasks     int
	MinTaskNameChars  int
	MaxTaskAttributes int
}

var rsettings = DefaultSettings()

func DefaultSettings() Settings {
	return Settings{
		MaxLineLength:     160,
		MaxPlays:          20,
		MaxTasksPerPlay:   100,
		MaxBlockTasks:     20,
		MinTaskNameChars:  5,
		MaxTaskAttributes: 15,
	}
}

// SetSettings replaces the thresholds; zero fields keep their defaults.
// Call it before a run starts.
func SetSettings(s Settings) {
	d := DefaultSettings()
	if s.MaxLineLength <= 0 {
		s.MaxLineLength = d.MaxLineLength
	}
	if s.MaxPlays <= 0 {
		s.MaxPlays = d.MaxPlays
	}
	if s.MaxTasksPerPlay <= 0 {
		s.MaxTasksPerPlay = d.MaxTasksPerPlay
	}
	if s.MaxBlockTasks <= 0 {
		s.MaxBlockTasks = d.MaxBlockTasks
	}
	if s.MinTaskNameChars <= 0 {
		s.MinTaskNameChars = d.MinTaskNameChars
	}
	if s.MaxTaskAttributes <= 0 {
		s.MaxTaskAttributes = d.MaxTaskAttributes
	}
	rsettings = s
}

// CurrentSettings returns the active thresholds.
func CurrentSettings() Settings { return rsettings }
