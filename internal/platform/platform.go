// Package platform models the client platform as a queried-once capability
// snapshot and coordinates fullscreen state with device orientation lock on
// native-shell platforms. A missing bridge or capability always degrades to
// a no-op, never an error.
package platform

import "github.com/openstreamhub/streamgate/pkg/models"

// Snapshot sanitizes a client-reported capability set. Capabilities that
// only exist behind the native bridge are cleared when the bridge is
// absent, so downstream code can trust the flags without re-checking.
func Snapshot(reported models.Capabilities) models.Capabilities {
	caps := reported
	if caps.OS == "" {
		caps.OS = models.OSWeb
	}
	if !caps.NativeShell {
		caps.OrientationLock = false
		if caps.OS != models.OSWeb {
			caps.OS = models.OSWeb
		}
	}
	return caps
}

// OrientationFor returns the directive that keeps device orientation in
// sync with fullscreen state. Only native shells with orientation-lock
// support ever get a directive.
func OrientationFor(caps models.Capabilities, fullscreen bool) models.OrientationDirective {
	if !caps.NativeShell || !caps.OrientationLock {
		return models.OrientationNone
	}
	if fullscreen {
		return models.OrientationLockLandscape
	}
	return models.OrientationUnlock
}

// AllowFullscreen reports whether the session may enter fullscreen at all
func AllowFullscreen(caps models.Capabilities) bool {
	return caps.Fullscreen
}

// AllowPictureInPicture reports whether PiP is available for the session
func AllowPictureInPicture(caps models.Capabilities, kind models.StreamKind) bool {
	// Embeds only expose PiP where the host player permits it; we can't
	// know, so we let the client try when the platform supports it.
	return caps.PictureInPic
}
