// Package actions implements the custom actions the dialogue layer calls
// through its action-server webhook: answering a question, listing and
// clearing documents, and explaining how to upload.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/rag"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/docclient"
)

// Action names registered with the dialogue layer.
const (
	AnswerQuestion     = "action_answer_question"
	ListPDFs           = "action_list_pdfs"
	ClearKnowledgeBase = "action_clear_knowledge_base"
	UploadPDF          = "action_upload_pdf"
)

const (
	MsgActionError = "Sorry, I encountered an error while processing your question. Please try again."
	MsgNoDocuments = "No documents have been uploaded yet. Upload some PDFs to get started!"
	MsgListFailed  = "Sorry, I couldn't retrieve the document list. Please try again later."
	MsgCleared     = "✅ All documents have been cleared from the knowledge base!"
	MsgClearFailed = "❌ Failed to clear the knowledge base. Please try again later."
	listHeader     = "📚 **Uploaded Documents:**\n\n"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, question string) (rag.Reply, error)
}

// Documents is the part of the document service the actions use.
type Documents interface {
	List(ctx context.Context) ([]docclient.DocumentInfo, error)
	Clear(ctx context.Context) (string, error)
}

// Action runs against one webhook request.
type Action func(ctx context.Context, req Request) Response

// Registry maps action names to implementations.
type Registry struct {
	actions map[string]Action
	log     *slog.Logger
}

// New builds the four actions. uploadURL is the document service root shown
// in upload instructions.
func New(answerer Answerer, docs Documents, uploadURL string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{log: logger}
	r.actions = map[string]Action{
		AnswerQuestion:     r.answerQuestion(answerer),
		ListPDFs:           r.listPDFs(docs),
		ClearKnowledgeBase: r.clearKnowledgeBase(docs),
		UploadPDF:          uploadInstructions(uploadURL),
	}
	return r
}

// Run executes the named action. ok is false for unknown names.
func (r *Registry) Run(ctx context.Context, req Request) (resp Response, ok bool) {
	act, ok := r.actions[req.NextAction]
	if !ok {
		return Response{}, false
	}
	return act(ctx, req), true
}

// Names lists the registered actions.
func (r *Registry) Names() []string {
	return []string{AnswerQuestion, ListPDFs, ClearKnowledgeBase, UploadPDF}
}

func (r *Registry) answerQuestion(answerer Answerer) Action {
	return func(ctx context.Context, req Request) Response {
		reply, err := answerer.Answer(ctx, req.Tracker.LatestMessage.Text)
		if err != nil {
			r.log.Error("actions: answer failed", "sender_id", req.SenderID, "error", err)
			return Say(MsgActionError)
		}
		resp := Say(reply.Text)
		for name, value := range reply.Slots() {
			resp.Events = append(resp.Events, SlotSet(name, value))
		}
		return resp
	}
}

func (r *Registry) listPDFs(docs Documents) Action {
	return func(ctx context.Context, _ Request) Response {
		list, err := docs.List(ctx)
		if err != nil {
			r.log.Error("actions: list documents", "error", err)
			return Say(MsgListFailed)
		}
		if len(list) == 0 {
			return Say(MsgNoDocuments)
		}
		return Say(FormatDocuments(list))
	}
}

func (r *Registry) clearKnowledgeBase(docs Documents) Action {
	return func(ctx context.Context, _ Request) Response {
		if _, err := docs.Clear(ctx); err != nil {
			r.log.Error("actions: clear knowledge base", "error", err)
			return Say(MsgClearFailed)
		}
		return Say(MsgCleared)
	}
}

func uploadInstructions(base string) Action {
	endpoint := strings.TrimRight(base, "/") + "/upload-pdf"
	text := fmt.Sprintf("To upload a PDF document:\n\n"+
		"1. **Via API**: Send a POST request to:\n   `%s`\n\n"+
		"2. **Via cURL**:\n   ```bash\n   curl -X POST \"%s\" \\\n        -H \"accept: application/json\" \\\n"+
		"        -H \"Content-Type: multipart/form-data\" \\\n        -F \"file=@/path/to/your/document.pdf\"\n   ```\n\n"+
		"3. **Programmatically**: Use any HTTP client to send a multipart form-data request with your PDF file.\n\n"+
		"After uploading, I'll process the document and you can ask questions about its content! 📄✨",
		endpoint, endpoint)
	return func(context.Context, Request) Response { return Say(text) }
}

// FormatDocuments renders the document list shown to users.
func FormatDocuments(list []docclient.DocumentInfo) string {
	var b strings.Builder
	b.WriteString(listHeader)
	for _, d := range list {
		status := d.Status
		if status == "" {
			status = "unknown"
		}
		name := d.Filename
		if name == "" {
			name = rag.UnknownSource
		}
		fmt.Fprintf(&b, "%s **%s** (%s)", statusEmoji(status), name, status)
		if status == string(domain.StatusCompleted) && d.ChunksCount > 0 {
			fmt.Fprintf(&b, " - %d chunks", d.ChunksCount)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusEmoji(status string) string {
	switch domain.Status(status) {
	case domain.StatusCompleted:
		return "✅"
	case domain.StatusProcessing:
		return "⏳"
	}
	return "❌"
}
