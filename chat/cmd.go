package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dungnx/chathist/configuration"
	"github.com/dungnx/chathist/internal/cli"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/store"
)

// NewCmd instantiates and returns the chat command.
func NewCmd(config *configuration.Config, s *store.Store, provider llm.Client) *cobra.Command {
	var opts struct {
		ConversationID int64
		Session        string
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Back and forth chat",
		Long:  "Back and forth chat against the local history store",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := s.GetOrCreateUser(ctx, opts.Session)
			if err != nil {
				return errors.Wrap(err, "resolving session")
			}

			synchronizer := NewSynchronizer(s, provider, user.ID, Options{
				Model:             config.Provider.DefaultModel,
				TextTimeout:       secondsOrDefault(config.RequestTimeoutSeconds, DefaultTextTimeout),
				AttachmentTimeout: secondsOrDefault(config.AttachmentTimeoutSeconds, DefaultAttachmentTimeout),
			})

			if opts.ConversationID != 0 {
				if err := resumeConversation(ctx, s, synchronizer, user.ID, opts.ConversationID); err != nil {
					return err
				}
			}

			cli.Title("CHATHIST [%s](session %s)", config.Provider.DefaultModel, opts.Session)
			printHistory(synchronizer.Messages())

			for {
				text, err := cli.PromptUser()
				if err == readline.ErrInterrupt || err == io.EOF {
					return nil
				}
				if err != nil {
					return errors.Wrap(err, "reading prompt")
				}
				if strings.TrimSpace(text) == "" {
					continue
				}

				if err := synchronizer.Send(ctx, text, nil, nil); err != nil {
					if errors.Is(err, ErrAlreadyLoading) || errors.Is(err, ErrEmptySend) {
						continue
					}
					cli.Error("error: %v\n", err)
					continue
				}

				messages := synchronizer.Messages()
				if len(messages) > 0 {
					cli.AIOutput(messages[len(messages)-1].Content + "\n")
				}
			}
		},
	}

	cmd.Flags().Int64Var(&opts.ConversationID, "conversation", 0, "resume an existing conversation")
	cmd.Flags().StringVar(&opts.Session, "session", "anonymous", "session token owning the history")
	return cmd
}

func resumeConversation(ctx context.Context, s *store.Store, synchronizer *Synchronizer, userID, conversationID int64) error {
	conversations, err := s.ListConversations(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	for _, conversation := range conversations {
		if conversation.ID == conversationID {
			return synchronizer.SelectConversation(ctx, conversation)
		}
	}
	return errors.Wrapf(store.ErrNotFound, "conversation %d", conversationID)
}

func printHistory(messages []*Message) {
	for _, message := range messages {
		switch message.Role {
		case store.RoleUser:
			cli.UserInput("> %s\n", message.Content)
		case store.RoleAssistant:
			cli.AIOutput(message.Content + "\n")
		}
	}
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
