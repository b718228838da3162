package cli

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Huddle/internal/roomcode"
	"github.com/BioHazard786/Huddle/internal/session"
)

var (
	flagCode  string
	flagMuted bool
)

var startCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"s", "new"},
	Short:   "Start a new room and wait for others to join",
	Long: `Start a new room with a generated code and join it.

Examples:
  huddle start
  huddle start --code TEAM-STANDUP
  huddle start --muted --relay`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := startCode(flagCode)
		if err != nil {
			return err
		}
		return runCall(cmd.Context(), code, true)
	},
}

var joinCmd = &cobra.Command{
	Use:     "join <code|link>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join an existing room by code or by the link shared by its creator.

Examples:
  huddle join KITTEN-PANCAKE
  huddle join https://huddle.qzz.io/r/KITTEN-PANCAKE`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := roomcode.Parse(args[0])
		if err != nil {
			return session.WrapError("join", session.ErrInvalidRoom, args[0])
		}
		return runCall(cmd.Context(), code, false)
	},
}

// startCode returns the normalized requested code, or a generated one.
func startCode(requested string) (string, error) {
	if requested == "" {
		code, err := roomcode.Generate()
		if err != nil {
			return "", session.NewError("generate room code", err)
		}
		return code, nil
	}
	code, err := roomcode.Parse(requested)
	if err != nil {
		return "", session.WrapError("start", session.ErrInvalidRoom, requested)
	}
	return code, nil
}

func init() {
	startCmd.Flags().StringVarP(&flagCode, "code", "c", "", "Room code to use instead of a generated one")
	for _, c := range []*cobra.Command{startCmd, joinCmd} {
		c.Flags().BoolVarP(&flagMuted, "muted", "m", false, "Join with the microphone muted")
	}
}
