package config

type OverlayConfig interface {
	GetFontSize() int
	GetFontColors() []string
	GetDrawAuthCode() bool
}

func (c *mainConfig) GetFontSize() int {
	return *c.settings.FontSize
}

func (c *mainConfig) GetFontColors() []string {
	return append([]string(nil), c.settings.FontColors...)
}

// GetDrawAuthCode reports whether the pending device code should be shown by
// the overlay instead of chatter labels.
func (c *mainConfig) GetDrawAuthCode() bool {
	return *c.settings.DrawAuthCode
}
