// Package mpris exposes the player over the org.mpris.MediaPlayer2
// D-Bus interface so desktop media keys and applets can drive it.
package mpris

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/app/player"
)

const (
	busName    = "org.mpris.MediaPlayer2.beats"
	objectPath = "/org/mpris/MediaPlayer2"

	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// Player is the slice of the controller MPRIS needs.
type Player interface {
	TogglePlay()
	SkipNext()
	SkipPrev()
	Seek(fraction float64)
	SetVolume(volume float64)
	Snapshot() player.Snapshot
}

// Publisher owns the D-Bus name and mirrors player state into the
// MPRIS properties.
type Publisher struct {
	conn   *dbus.Conn
	props  *prop.Properties
	player Player
}

// mprisHandler implements the exported MPRIS methods.
type mprisHandler struct {
	player Player
}

// New connects to the session bus, claims the MPRIS name and exports
// the player. Refresh must be called whenever the player state changes.
func New(p Player) (*Publisher, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagReplaceExisting)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to request bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, errors.Newf("bus name %s already taken", busName)
	}

	pub := &Publisher{conn: conn, player: p}
	handler := &mprisHandler{player: p}

	if err := conn.Export(handler, objectPath, rootInterface); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to export root interface")
	}
	if err := conn.Export(handler, objectPath, playerInterface); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to export player interface")
	}

	pub.props, err = prop.Export(conn, objectPath, pub.propertySpec())
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to export properties")
	}

	zlog.Info().Str("bus_name", busName).Msg("mpris: registered on session bus")
	return pub, nil
}

// HandleEvent mirrors a player event into the MPRIS properties.
func (p *Publisher) HandleEvent(player.Event) {
	p.Refresh()
}

// Refresh pushes the current player snapshot to the bus.
func (p *Publisher) Refresh() {
	snap := p.player.Snapshot()

	status := "Stopped"
	if snap.Current != nil {
		if snap.Playing {
			status = "Playing"
		} else {
			status = "Paused"
		}
	}

	p.props.SetMust(playerInterface, "PlaybackStatus", status)
	p.props.SetMust(playerInterface, "Metadata", metadataFor(snap))
	p.props.SetMust(playerInterface, "Volume", snap.Volume)
	p.props.SetMust(playerInterface, "CanGoNext", snap.CanGoNext)
	p.props.SetMust(playerInterface, "CanGoPrevious", snap.CanGoPrevious)
	p.props.SetMust(playerInterface, "Position", snap.Position.Microseconds())
}

// Close releases the bus name.
func (p *Publisher) Close() error {
	if _, err := p.conn.ReleaseName(busName); err != nil {
		zlog.Warn().Err(err).Msg("mpris: failed to release bus name")
	}
	return p.conn.Close()
}

func metadataFor(snap player.Snapshot) map[string]dbus.Variant {
	metadata := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")),
	}
	if snap.Current == nil {
		return metadata
	}

	metadata["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/com/github/satvikx/beats/track/" + sanitizePathComponent(snap.Current.ID)))
	metadata["xesam:title"] = dbus.MakeVariant(snap.Current.Title)
	metadata["xesam:artist"] = dbus.MakeVariant([]string{snap.Current.Artist})
	if snap.Duration > 0 {
		metadata["mpris:length"] = dbus.MakeVariant(snap.Duration.Microseconds())
	}
	if snap.Current.ThumbnailURL != "" {
		metadata["mpris:artUrl"] = dbus.MakeVariant(snap.Current.ThumbnailURL)
	}
	return metadata
}

// sanitizePathComponent keeps track ids legal as D-Bus object path
// elements.
func sanitizePathComponent(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (p *Publisher) propertySpec() prop.Map {
	snap := p.player.Snapshot()

	return prop.Map{
		rootInterface: {
			"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitFalse},
			"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitFalse},
			"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitFalse},
			"Identity":            {Value: "beats", Writable: false, Emit: prop.EmitFalse},
			"SupportedUriSchemes": {Value: []string{}, Writable: false, Emit: prop.EmitFalse},
			"SupportedMimeTypes":  {Value: []string{}, Writable: false, Emit: prop.EmitFalse},
		},
		playerInterface: {
			"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue},
			"Metadata":       {Value: metadataFor(snap), Writable: false, Emit: prop.EmitTrue},
			"Volume":         {Value: snap.Volume, Writable: true, Emit: prop.EmitTrue, Callback: p.onVolumeChange},
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse},
			"Rate":           {Value: 1.0, Writable: false, Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitFalse},
			"MaximumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitFalse},
			"CanGoNext":      {Value: snap.CanGoNext, Writable: false, Emit: prop.EmitTrue},
			"CanGoPrevious":  {Value: snap.CanGoPrevious, Writable: false, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanPause":       {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitFalse},
			"CanControl":     {Value: true, Writable: false, Emit: prop.EmitFalse},
		},
	}
}

func (p *Publisher) onVolumeChange(c *prop.Change) *dbus.Error {
	volume, ok := c.Value.(float64)
	if !ok {
		return prop.ErrInvalidArg
	}
	p.player.SetVolume(volume)
	return nil
}

// --- exported MPRIS methods ---

func (h *mprisHandler) Raise() *dbus.Error { return nil }

func (h *mprisHandler) Quit() *dbus.Error { return nil }

func (h *mprisHandler) Next() *dbus.Error {
	h.player.SkipNext()
	return nil
}

func (h *mprisHandler) Previous() *dbus.Error {
	h.player.SkipPrev()
	return nil
}

func (h *mprisHandler) PlayPause() *dbus.Error {
	h.player.TogglePlay()
	return nil
}

func (h *mprisHandler) Play() *dbus.Error {
	snap := h.player.Snapshot()
	if snap.Current != nil && !snap.Playing {
		h.player.TogglePlay()
	}
	return nil
}

func (h *mprisHandler) Pause() *dbus.Error {
	if h.player.Snapshot().Playing {
		h.player.TogglePlay()
	}
	return nil
}

func (h *mprisHandler) Stop() *dbus.Error {
	if h.player.Snapshot().Playing {
		h.player.TogglePlay()
	}
	h.player.Seek(0)
	return nil
}

// Seek moves by a relative offset in microseconds.
func (h *mprisHandler) Seek(offset int64) *dbus.Error {
	snap := h.player.Snapshot()
	if snap.Duration <= 0 {
		return nil
	}
	target := snap.Position + time.Duration(offset)*time.Microsecond
	h.player.Seek(float64(target) / float64(snap.Duration))
	return nil
}

// SetPosition jumps to an absolute position in microseconds.
func (h *mprisHandler) SetPosition(_ dbus.ObjectPath, position int64) *dbus.Error {
	snap := h.player.Snapshot()
	if snap.Duration <= 0 {
		return nil
	}
	h.player.Seek(float64(time.Duration(position)*time.Microsecond) / float64(snap.Duration))
	return nil
}

func (h *mprisHandler) OpenUri(string) *dbus.Error { return nil }
