package playback

import (
	"context"
	"strings"
)

// Command is a parsed line of user input.
type Command struct {
	Op  string
	Arg string
}

const (
	OpPlay     = "play"
	OpPlaylist = "playlist"
	OpPause    = "pause"
	OpResume   = "resume"
	OpSkip     = "skip"
	OpDevices  = "devices"
	OpStatus   = "status"
	OpHelp     = "help"
)

var aliases = map[string]string{
	"pause":    OpPause,
	"stop":     OpPause,
	"resume":   OpResume,
	"continue": OpResume,
	"unpause":  OpResume,
	"skip":     OpSkip,
	"next":     OpSkip,
	"devices":  OpDevices,
	"status":   OpStatus,
	"help":     OpHelp,
	"play":     OpPlay,
	"playlist": OpPlaylist,
}

// HelpText lists the commands [Orchestrator.Dispatch] understands.
const HelpText = `Commands:
  play <query>       search and play a piece (the word "play" is optional)
  playlist <name>    play one of your playlists
  pause | stop       pause playback
  resume | continue  resume playback
  skip | next        skip to the next track
  devices            list your open devices
  status             show your session state`

// Parse splits a line into a [Command]. Text that does not start with a known command is a play query.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	head, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	op, ok := aliases[strings.ToLower(head)]
	if !ok {
		return Command{Op: OpPlay, Arg: text}
	}

	switch op {
	case OpPlay, OpPlaylist:
		return Command{Op: op, Arg: rest}
	default:
		// "stop making sense" is a search, not a pause
		if rest != "" {
			return Command{Op: OpPlay, Arg: text}
		}
		return Command{Op: op}
	}
}

// Dispatch parses text and runs the matching operation.
func (o *Orchestrator) Dispatch(ctx context.Context, userID, text string) string {
	cmd := Parse(text)

	switch cmd.Op {
	case OpPlaylist:
		return o.PlayByPlaylistName(ctx, userID, cmd.Arg)
	case OpPause:
		return o.Pause(ctx, userID)
	case OpResume:
		return o.Resume(ctx, userID)
	case OpSkip:
		return o.SkipNext(ctx, userID)
	case OpDevices:
		return o.ListDevices(ctx, userID)
	case OpStatus:
		return o.Status(userID)
	case OpHelp:
		return HelpText
	default:
		return o.PlayByQuery(ctx, userID, cmd.Arg)
	}
}
