package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mdmonauwarulislam/jobpulse/internal/domain"
	"github.com/mdmonauwarulislam/jobpulse/internal/services"
)

func TestSendMessage_Created(t *testing.T) {
	msg := &fakeMessagingService{
		sendFn: func(_ context.Context, caller domain.Identity, conversationID string, in services.SendMessageInput) (*domain.Message, error) {
			if conversationID != testConvID {
				t.Fatalf("conversationID = %q", conversationID)
			}
			if in.Content != "hello" || in.Type != domain.MessageFile {
				t.Fatalf("input = %+v", in)
			}
			if in.AttachmentURL != "https://cdn.example/cv.pdf" || in.AttachmentSize != 1024 {
				t.Fatalf("attachment = %+v", in)
			}
			return &domain.Message{ID: "m1", ConversationID: conversationID, Content: in.Content, Type: in.Type, SenderKind: caller.Kind}, nil
		},
	}
	r := newHandlerRouter(msg, &fakeNotificationService{})

	w, env := doJSON(t, r, http.MethodPost, "/conversations/"+testConvID+"/messages", gin.H{
		"content":        "hello",
		"type":           "FILE", // case-insensitive
		"attachmentUrl":  "https://cdn.example/cv.pdf",
		"attachmentName": "cv.pdf",
		"attachmentSize": 1024,
	}, testEmployer)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := env["data"].(map[string]any)
	if data["id"] != "m1" || data["senderKind"] != string(domain.ParticipantEmployer) {
		t.Fatalf("data = %v", data)
	}
}

func TestSendMessage_InvalidUUIDAndMissingContent(t *testing.T) {
	r := newHandlerRouter(&fakeMessagingService{}, &fakeNotificationService{})

	w, _ := doJSON(t, r, http.MethodPost, "/conversations/not-a-uuid/messages", gin.H{"content": "x"}, testEmployer)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid: status = %d", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPost, "/conversations/"+testConvID+"/messages", gin.H{"content": "   "}, testEmployer)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank content: status = %d", w.Code)
	}
	if env["error"] != ErrCodeBadRequest {
		t.Fatalf("error = %v", env["error"])
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"too long", services.ErrContentTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad type", services.ErrInvalidMessageType, http.StatusBadRequest, ErrCodeBadRequest},
		{"closed", services.ErrConversationClosed, http.StatusBadRequest, ErrCodeConversationClosed},
		{"not found", services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &fakeMessagingService{
				sendFn: func(context.Context, domain.Identity, string, services.SendMessageInput) (*domain.Message, error) {
					return nil, tc.err
				},
			}
			r := newHandlerRouter(msg, &fakeNotificationService{})
			w, env := doJSON(t, r, http.MethodPost, "/conversations/"+testConvID+"/messages", gin.H{"content": "x"}, testEmployer)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if env["error"] != tc.code {
				t.Fatalf("error = %v, want %v", env["error"], tc.code)
			}
		})
	}
}

func TestListMessages_PageAndEnvelope(t *testing.T) {
	msg := &fakeMessagingService{
		msgsFn: func(_ context.Context, _ domain.Identity, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
			if page != 1 || pageSize != 50 {
				t.Fatalf("defaults = %d/%d", page, pageSize)
			}
			return []domain.Message{
				{ID: "m1", ConversationID: conversationID, Content: "first"},
				{ID: "m2", ConversationID: conversationID, Content: "second"},
			}, 2, nil
		},
	}
	r := newHandlerRouter(msg, &fakeNotificationService{})

	w, env := doJSON(t, r, http.MethodGet, "/conversations/"+testConvID+"/messages", nil, testEmployer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := env["data"].(map[string]any)
	msgs := data["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	pg := data["pagination"].(map[string]any)
	if pg["totalItems"] != float64(2) || pg["hasNextPage"] != false {
		t.Fatalf("pagination = %v", pg)
	}
}

func TestListMessages_PageSizeClamped(t *testing.T) {
	msg := &fakeMessagingService{
		msgsFn: func(_ context.Context, _ domain.Identity, _ string, page, pageSize int) ([]domain.Message, int64, error) {
			if pageSize != 100 {
				t.Fatalf("pageSize = %d, want clamp to 100", pageSize)
			}
			return nil, 0, nil
		},
	}
	r := newHandlerRouter(msg, &fakeNotificationService{})
	w, _ := doJSON(t, r, http.MethodGet, "/conversations/"+testConvID+"/messages?page_size=5000", nil, testEmployer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
