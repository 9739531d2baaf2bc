package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"vidsentry/internal/config"
	"vidsentry/internal/models"
)

type fakeModel struct {
	got   []*schema.Message
	reply string
	err   error
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func TestRespondPassesHistoryThrough(t *testing.T) {
	fake := &fakeModel{reply: "model says hi"}
	svc := &Service{model: fake}

	history := []models.ChatTurn{
		{Role: models.ChatRoleUser, Content: "hi"},
		{Role: models.ChatRoleModel, Content: "hello there"},
	}
	got, err := svc.Respond(context.Background(), "follow up", history)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "model says hi" {
		t.Fatalf("expected raw model text, got %q", got)
	}

	if len(fake.got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(fake.got))
	}
	wantRoles := []schema.RoleType{schema.User, schema.Assistant, schema.User}
	wantContent := []string{"hi", "hello there", "follow up"}
	for i, msg := range fake.got {
		if msg.Role != wantRoles[i] || msg.Content != wantContent[i] {
			t.Fatalf("message %d = {%s %q}, want {%s %q}", i, msg.Role, msg.Content, wantRoles[i], wantContent[i])
		}
	}
}

func TestRespondEmptyHistory(t *testing.T) {
	fake := &fakeModel{reply: "ok"}
	svc := &Service{model: fake}

	if _, err := svc.Respond(context.Background(), "solo question", nil); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(fake.got) != 1 || fake.got[0].Content != "solo question" {
		t.Fatalf("expected single user message, got %+v", fake.got)
	}
}

func TestRespondRejectsEmptyText(t *testing.T) {
	svc := &Service{model: &fakeModel{}}
	if _, err := svc.Respond(context.Background(), "   ", nil); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestRespondPropagatesModelError(t *testing.T) {
	svc := &Service{model: &fakeModel{err: errors.New("quota")}}
	if _, err := svc.Respond(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error from model")
	}
}

func TestNewServiceUnknownProvider(t *testing.T) {
	cfg := &config.Config{
		BasicConfig: config.BasicConfig{ChatProvider: "nope"},
		Providers:   map[string]config.ProviderConfig{"nope": {}},
	}
	if _, err := NewService(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
