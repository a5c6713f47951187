package notifs

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

type DiscordColor int

const (
	DiscordColor_None  = iota
	DiscordColor_Info  = 3447003
	DiscordColor_Alert = 16711712
)

const DiscordPacing = 2 * time.Second

var _ models.Notifier = &DiscordHandler{}

type DiscordHandler struct {
	alertWebhook webhook.Client
	testWebhook  webhook.Client
	logger       models.Logger
}

// NewDiscordHandler returns nil, without error, when no webhook is configured.
func NewDiscordHandler(logger models.Logger) (*DiscordHandler, error) {
	if a, err := parseDiscordWebhookUrl(common.Env_DiscordAlertWebhook); err != nil {
		return nil, err
	} else if t, err := parseDiscordWebhookUrl(common.Env_DiscordTestWebhook); err != nil {
		return nil, err
	} else if a == nil && t == nil {
		return nil, nil
	} else {
		return &DiscordHandler{a, t, logger}, nil
	}
}

func parseDiscordWebhookUrl(urlEnv string) (webhook.Client, error) {
	webhookUrl := os.Getenv(urlEnv)
	if len(webhookUrl) > 0 {
		if parsedUrl, err := url.Parse(webhookUrl); err != nil {
			return nil, err
		} else {
			urlParts := strings.Split(strings.TrimSuffix(parsedUrl.Path, "/"), "/")
			if len(urlParts) < 2 {
				return nil, &models.ValidationError{Field: urlEnv, Reason: "not a webhook url"}
			}
			if id, err := snowflake.Parse(urlParts[len(urlParts)-2]); err != nil {
				return nil, err
			} else {
				return webhook.New(id, urlParts[len(urlParts)-1]), nil
			}
		}
	}
	return nil, nil
}

func (d *DiscordHandler) SendAlert(title, desc string) error {
	var err error
	if d.alertWebhook != nil {
		err = d.sendNotif(d.alertWebhook, title, desc, DiscordColor_Alert)
	}
	// Always duplicate notifications to the test channel, if configured.
	if d.testWebhook != nil {
		if testErr := d.sendNotif(d.testWebhook, title, desc, DiscordColor_Alert); err == nil {
			err = testErr
		}
	}
	return err
}

func (d *DiscordHandler) sendNotif(wh webhook.Client, title, desc string, color DiscordColor) error {
	messageEmbed := discord.Embed{
		Title:       title,
		Description: desc,
		Type:        discord.EmbedTypeRich,
		Color:       int(color),
	}
	_, err := wh.CreateMessage(discord.NewWebhookMessageCreateBuilder().
		SetEmbeds(messageEmbed).
		SetUsername(common.ServiceName).
		Build(),
		rest.WithDelay(DiscordPacing),
	)
	if err != nil {
		d.logger.Errorf("notifs: error sending discord notification: %v, %s, %s", err, title, desc)
		return err
	}
	return nil
}
