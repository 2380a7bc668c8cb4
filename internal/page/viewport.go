package page

import (
	"context"
	"fmt"
)

// DevicePreset is one named viewport/UA/DPR/mobile combination (spec.md §4.2
// "40+ built-ins").
type DevicePreset struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	UserAgent         string
}

// devicePresets covers the common agent-requested form factors: phones,
// tablets, and a handful of desktop reference sizes. Width/height are in CSS
// pixels, landscape variants included where commonly requested.
var devicePresets = map[string]DevicePreset{
	"iPhone SE":               {375, 667, 2, true, uaIPhone},
	"iPhone XR":               {414, 896, 2, true, uaIPhone},
	"iPhone 12":               {390, 844, 3, true, uaIPhone},
	"iPhone 12 Pro":           {390, 844, 3, true, uaIPhone},
	"iPhone 12 Pro Max":       {428, 926, 3, true, uaIPhone},
	"iPhone 13":               {390, 844, 3, true, uaIPhone},
	"iPhone 13 Pro":           {390, 844, 3, true, uaIPhone},
	"iPhone 14":               {390, 844, 3, true, uaIPhone},
	"iPhone 14 Pro":           {393, 852, 3, true, uaIPhone},
	"iPhone 14 Pro Max":       {430, 932, 3, true, uaIPhone},
	"iPhone 15":               {393, 852, 3, true, uaIPhone},
	"iPhone 15 Pro Max":       {430, 932, 3, true, uaIPhone},
	"Pixel 5":                 {393, 851, 2.75, true, uaAndroid},
	"Pixel 7":                 {412, 915, 2.625, true, uaAndroid},
	"Galaxy S8":               {360, 740, 4, true, uaAndroid},
	"Galaxy S9+":               {320, 658, 4.5, true, uaAndroid},
	"Galaxy Tab S4":           {712, 1138, 2.25, true, uaAndroid},
	"iPad Mini":               {768, 1024, 2, true, uaIPad},
	"iPad Air":                {820, 1180, 2, true, uaIPad},
	"iPad Pro 11":             {834, 1194, 2, true, uaIPad},
	"iPad Pro 12.9":           {1024, 1366, 2, true, uaIPad},
	"Surface Pro 7":           {912, 1368, 2, false, uaWindows},
	"Surface Duo":             {540, 720, 2.5, true, uaAndroid},
	"Nest Hub":                {1024, 600, 2, true, uaAndroid},
	"Nest Hub Max":            {1280, 800, 2, true, uaAndroid},
	"Laptop (small)":          {1366, 768, 1, false, uaChromeDesktop},
	"Laptop (large)":          {1440, 900, 1, false, uaChromeDesktop},
	"Desktop 1080p":           {1920, 1080, 1, false, uaChromeDesktop},
	"Desktop 1440p":           {2560, 1440, 1, false, uaChromeDesktop},
	"Desktop 4K":              {3840, 2160, 1, false, uaChromeDesktop},
	"iPhone SE landscape":     {667, 375, 2, true, uaIPhone},
	"iPhone 12 landscape":     {844, 390, 3, true, uaIPhone},
	"iPad Mini landscape":     {1024, 768, 2, true, uaIPad},
	"iPad Air landscape":      {1180, 820, 2, true, uaIPad},
	"iPad Pro 11 landscape":   {1194, 834, 2, true, uaIPad},
	"iPad Pro 12.9 landscape": {1366, 1024, 2, true, uaIPad},
	"Pixel 5 landscape":       {851, 393, 2.75, true, uaAndroid},
	"Pixel 7 landscape":       {915, 412, 2.625, true, uaAndroid},
	"Galaxy S8 landscape":     {740, 360, 4, true, uaAndroid},
	"Moto G4":                 {360, 640, 3, true, uaAndroid},
	"Kindle Fire HDX":         {800, 1280, 2, true, uaAndroid},
	"Blackberry Z30":          {360, 640, 2, true, uaAndroid},
	"Microsoft Lumia 550":     {640, 360, 2, true, uaWindows},
}

const (
	uaIPhone        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaIPad          = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaAndroid       = "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaWindows       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaChromeDesktop = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ViewportOptions customizes or selects a viewport emulation (spec.md §4.2).
type ViewportOptions struct {
	Device            string
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	UserAgent         string
	Latitude          float64
	Longitude         float64
	HasGeolocation    bool
}

// LookupDevice returns the named preset and whether it was found.
func LookupDevice(name string) (DevicePreset, bool) {
	d, ok := devicePresets[name]
	return d, ok
}

// SetViewport resolves a device preset (if named) layered with explicit
// overrides, then issues Emulation.setDeviceMetricsOverride and, if a
// UserAgent is set, Network.setUserAgentOverride.
func (p *Page) SetViewport(ctx context.Context, opts ViewportOptions) error {
	preset := DevicePreset{Width: 1280, Height: 720, DeviceScaleFactor: 1}
	if opts.Device != "" {
		d, ok := LookupDevice(opts.Device)
		if !ok {
			return fmt.Errorf("page: unknown device preset %q", opts.Device)
		}
		preset = d
	}
	if opts.Width != 0 {
		preset.Width = opts.Width
	}
	if opts.Height != 0 {
		preset.Height = opts.Height
	}
	if opts.DeviceScaleFactor != 0 {
		preset.DeviceScaleFactor = opts.DeviceScaleFactor
	}
	if opts.Device == "" && opts.Mobile {
		preset.Mobile = true
	}
	if opts.UserAgent != "" {
		preset.UserAgent = opts.UserAgent
	}

	params := map[string]any{
		"width":             preset.Width,
		"height":            preset.Height,
		"deviceScaleFactor": preset.DeviceScaleFactor,
		"mobile":            preset.Mobile,
	}
	if _, err := p.Session.Send(ctx, "Emulation.setDeviceMetricsOverride", params); err != nil {
		return fmt.Errorf("page: set viewport: %w", err)
	}

	if preset.UserAgent != "" {
		uaParams := map[string]any{"userAgent": preset.UserAgent}
		if _, err := p.Session.Send(ctx, "Network.setUserAgentOverride", uaParams); err != nil {
			return fmt.Errorf("page: set user agent: %w", err)
		}
	}

	if opts.HasGeolocation {
		geoParams := map[string]any{
			"latitude":  opts.Latitude,
			"longitude": opts.Longitude,
			"accuracy":  1,
		}
		if _, err := p.Session.Send(ctx, "Emulation.setGeolocationOverride", geoParams); err != nil {
			return fmt.Errorf("page: set geolocation: %w", err)
		}
	}

	return nil
}

// ResetViewport restores a plain desktop viewport, called at the start of
// every invocation (spec.md §2 step 3 "reset viewport").
func (p *Page) ResetViewport(ctx context.Context) error {
	return p.SetViewport(ctx, ViewportOptions{Width: 1280, Height: 720, DeviceScaleFactor: 1})
}
