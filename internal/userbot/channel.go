package userbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	messagepeer "github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"

	"github.com/aurafarm/farm-bot/internal/farm"
)

// gameChannel sends commands and callback clicks to the game bot over one
// user's MTProto connection.
type gameChannel struct {
	api *tg.Client

	mu   sync.Mutex
	peer tg.InputPeerClass
}

func newGameChannel(api *tg.Client) *gameChannel {
	return &gameChannel{api: api}
}

func (c *gameChannel) setPeer(peer tg.InputPeerClass) {
	c.mu.Lock()
	c.peer = peer
	c.mu.Unlock()
}

func (c *gameChannel) gamePeer() (tg.InputPeerClass, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		return nil, fmt.Errorf("game peer not resolved yet")
	}
	return c.peer, nil
}

// Send delivers a text command to the game bot.
func (c *gameChannel) Send(ctx context.Context, command string) error {
	peer, err := c.gamePeer()
	if err != nil {
		return err
	}

	_, err = c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  command,
		RandomID: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}

// Click answers an inline callback button on a game message.
func (c *gameChannel) Click(ctx context.Context, messageID int, data []byte) error {
	peer, err := c.gamePeer()
	if err != nil {
		return err
	}

	req := &tg.MessagesGetBotCallbackAnswerRequest{
		Peer:  peer,
		MsgID: messageID,
	}
	req.SetData(data)

	if _, err := c.api.MessagesGetBotCallbackAnswer(ctx, req); err != nil {
		return fmt.Errorf("click button on message %d: %w", messageID, err)
	}
	return nil
}

// resolveGamePeer looks the game bot up by username.
func resolveGamePeer(ctx context.Context, api *tg.Client, username string) (tg.InputPeerClass, error) {
	res, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: strings.TrimPrefix(username, "@"),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", username, err)
	}
	return messagepeer.EntitiesFromResult(res).ExtractPeer(res.Peer)
}

// fromGameBot reports whether a message came in from the game bot's private
// chat. Outgoing copies of our own commands are excluded.
func fromGameBot(m *tg.Message, gameBotID int64) bool {
	if m == nil || m.Out {
		return false
	}
	peer, ok := m.PeerID.(*tg.PeerUser)
	return ok && peer.UserID == gameBotID
}

// adaptMessage converts a raw Telegram message into the dispatcher's model.
func adaptMessage(m *tg.Message, edited bool) farm.Message {
	return farm.Message{
		ID:      m.ID,
		Text:    m.Message,
		Buttons: adaptButtons(m),
		Edited:  edited,
	}
}

func adaptButtons(m *tg.Message) [][]farm.Button {
	markup, ok := m.GetReplyMarkup()
	if !ok {
		return nil
	}
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		return nil
	}

	rows := make([][]farm.Button, 0, len(inline.Rows))
	for _, row := range inline.Rows {
		buttons := make([]farm.Button, 0, len(row.Buttons))
		for _, b := range row.Buttons {
			switch btn := b.(type) {
			case *tg.KeyboardButtonCallback:
				buttons = append(buttons, farm.Button{Label: btn.Text, Data: btn.Data})
			default:
				buttons = append(buttons, farm.Button{Label: b.GetText()})
			}
		}
		rows = append(rows, buttons)
	}
	return rows
}
