package models

// OS constants for the native shell bridge
const (
	OSAndroid = "android"
	OSIOS     = "ios"
	OSWeb     = "web"
)

// Capabilities is a queried-once snapshot of the client platform, reported
// at session creation and injected into everything that needs it. Absence
// of the native bridge degrades every capability to false.
type Capabilities struct {
	NativeShell     bool   `json:"native_shell"`
	OS              string `json:"os"`
	OrientationLock bool   `json:"orientation_lock"`
	Fullscreen      bool   `json:"fullscreen"`
	PictureInPic    bool   `json:"picture_in_picture"`
	DownlinkMbps    float64 `json:"downlink_mbps,omitempty"`
}

// OrientationDirective tells the client what to do with device orientation
type OrientationDirective string

// OrientationDirective constants
const (
	OrientationNone           OrientationDirective = "none"
	OrientationLockLandscape  OrientationDirective = "lock_landscape"
	OrientationUnlock         OrientationDirective = "unlock"
)
