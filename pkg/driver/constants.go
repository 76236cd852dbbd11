package driver

const (
	// WindowObjectKey marks a window or frame reference in script arguments and results.
	WindowObjectKey = "WINDOW"

	// ElementObjectKey marks an element reference in script arguments and results.
	ElementObjectKey = "ELEMENT"

	// GlobalWindowHandle is the only window handle reported, since a surface has a single window.
	GlobalWindowHandle = "WPDriverWindowHandle"
)

// Mouse state keys.
const (
	MouseClientXYKey = "clientXY"
	MouseElementKey  = "element"
)
