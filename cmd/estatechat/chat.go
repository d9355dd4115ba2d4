package main

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/brief"
	"github.com/estatechat/chatsync/pkg/chat"
)

func newChatCommand() *cobra.Command {
	var briefID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), briefID)
		},
	}

	cmd.Flags().StringVar(&briefID, "brief", "", "property brief to keep updated from the conversation")

	return cmd
}

func runChat(ctx context.Context, briefID string) error {
	client := api.NewClient(
		viper.GetString("base-url"),
		api.WithTimeout(viper.GetDuration("timeout")),
	)

	router, err := chat.NewEventRouter()
	if err != nil {
		return errors.Wrap(err, "create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	conv := chat.NewConversation(client,
		chat.WithLanguage(viper.GetString("language")),
		chat.WithPollInterval(viper.GetDuration("poll-interval")),
		chat.WithEvents(router),
	)

	// Timeline changes flow into the TUI through this channel; a full
	// channel drops the event, the next one triggers the same re-render.
	events := make(chan chat.Event, 64)
	router.AddHandler("tui-timeline", chat.TimelineTopic, func(msg *message.Message) error {
		e, err := chat.ParseEvent(msg.Payload)
		if err != nil {
			return err
		}
		select {
		case events <- *e:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event router stopped")
		}
	}()
	<-router.Running()

	session, err := conv.EnsureSession(ctx)
	if err != nil {
		return errors.Wrap(err, "create session")
	}
	log.Info().Str("session_id", session.ID).Msg("conversation ready")

	var briefs *brief.Manager
	if briefID != "" {
		briefs = brief.NewManager(client)
		if _, err := briefs.Load(ctx, briefID); err != nil {
			return errors.Wrap(err, "load brief")
		}
	}

	conv.StartPolling()
	defer func() {
		if err := conv.End(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to end session")
		}
	}()

	program := tea.NewProgram(
		newChatModel(ctx, conv, briefs, events),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return errors.Wrap(err, "run chat ui")
}
