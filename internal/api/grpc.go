package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
	"github.com/victornm/avidquiz/internal/leaderboard"
	"github.com/victornm/avidquiz/internal/session"
)

const (
	SessionServiceName = "avidquiz.v1.SessionService"

	// CodecName is the content subtype of the JSON wire format. Clients must
	// call with grpc.CallContentSubtype(CodecName).
	CodecName = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

type (
	SessionRequest struct {
		SessionID string `json:"sessionId"`
	}

	NextLessonRequest struct {
		SessionID string `json:"sessionId"`
		Category  string `json:"category"`
		Source    string `json:"source"`
	}

	MarkReadRequest struct {
		SessionID string `json:"sessionId"`
		Title     string `json:"title"`
	}

	MarkReadResponse struct {
		ReadTitles []string `json:"readTitles"`
		Known      bool     `json:"known"`
	}

	AnswerRequest struct {
		SessionID   string `json:"sessionId"`
		AnswerIndex int    `json:"answerIndex"`
	}

	SubmitScoreRequest struct {
		SessionID string `json:"sessionId"`
		Name      string `json:"name"`
		Mode      string `json:"mode"`
		Score     int    `json:"score"`
		Category  string `json:"category"`
	}

	SubmitScoreResponse struct {
		Entry domain.LeaderboardEntry `json:"entry"`
		Rank  int                     `json:"rank"`
	}

	GetLeaderboardRequest struct {
		Mode  string `json:"mode"`
		Limit int    `json:"limit"`
	}
)

// SessionServiceServer is the session service as served over gRPC.
type SessionServiceServer interface {
	NextLesson(ctx context.Context, req *NextLessonRequest) (*QuizState, error)
	MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error)
	StartQuiz(ctx context.Context, req *SessionRequest) (*QuizState, error)
	CurrentQuestion(ctx context.Context, req *SessionRequest) (*QuizState, error)
	Answer(ctx context.Context, req *AnswerRequest) (*QuizState, error)
	GetTotals(ctx context.Context, req *SessionRequest) (*domain.Totals, error)
	SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error)
	GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*domain.Leaderboard, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("NextLesson", SessionServiceServer.NextLesson),
		unary("MarkRead", SessionServiceServer.MarkRead),
		unary("StartQuiz", SessionServiceServer.StartQuiz),
		unary("CurrentQuestion", SessionServiceServer.CurrentQuestion),
		unary("Answer", SessionServiceServer.Answer),
		unary("GetTotals", SessionServiceServer.GetTotals),
		unary("SubmitScore", SessionServiceServer.SubmitScore),
		unary("GetLeaderboard", SessionServiceServer.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "avidquiz/v1/session",
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + SessionServiceName + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			s := srv.(SessionServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func requireSession(id string) error {
	if id == "" {
		return errors.InvalidArgument("session id is required")
	}
	return nil
}

func (a *API) NextLesson(ctx context.Context, req *NextLessonRequest) (*QuizState, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	resp, err := a.qss.NextLesson(ctx, session.NextLessonRequest{
		SessionID: req.SessionID,
		Category:  req.Category,
		Source:    req.Source,
	})
	if err != nil {
		return nil, err
	}

	return lessonState(resp.Lesson, resp.Totals), nil
}

func (a *API) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	resp, err := a.qss.MarkRead(ctx, session.MarkReadRequest{SessionID: req.SessionID, Title: req.Title})
	if err != nil {
		return nil, err
	}

	return &MarkReadResponse{ReadTitles: resp.ReadTitles, Known: resp.Known}, nil
}

func (a *API) StartQuiz(ctx context.Context, req *SessionRequest) (*QuizState, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	resp, err := a.qss.StartQuiz(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return questionState(resp.Question, resp.Totals), nil
}

func (a *API) CurrentQuestion(ctx context.Context, req *SessionRequest) (*QuizState, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	resp, err := a.qss.CurrentQuestion(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return questionState(resp.Question, resp.Totals), nil
}

func (a *API) Answer(ctx context.Context, req *AnswerRequest) (*QuizState, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	resp, err := a.qss.Answer(ctx, session.AnswerRequest{SessionID: req.SessionID, AnswerIndex: req.AnswerIndex})
	if err != nil {
		return nil, err
	}

	return answerState(resp), nil
}

func (a *API) GetTotals(ctx context.Context, req *SessionRequest) (*domain.Totals, error) {
	if err := requireSession(req.SessionID); err != nil {
		return nil, err
	}

	t, err := a.qss.Totals(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (a *API) SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error) {
	resp, err := a.ls.Submit(ctx, leaderboard.SubmitRequest{
		SessionID: req.SessionID,
		Name:      req.Name,
		Mode:      domain.Mode(req.Mode),
		Score:     req.Score,
		Category:  req.Category,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitScoreResponse{Entry: resp.Entry, Rank: resp.Rank}, nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*domain.Leaderboard, error) {
	return a.ls.Top(ctx, leaderboard.TopRequest{
		Mode:  domain.Mode(req.Mode),
		Limit: req.Limit,
	})
}

// Client calls the session service over a gRPC connection. Errors come back
// as *errors.Error with the server's reason.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	err := c.cc.Invoke(ctx, "/"+SessionServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, errors.FromStatus(err)
	}
	return out, nil
}

func (c *Client) NextLesson(ctx context.Context, req *NextLessonRequest) (*QuizState, error) {
	return invoke[QuizState](ctx, c, "NextLesson", req)
}

func (c *Client) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c, "MarkRead", req)
}

func (c *Client) StartQuiz(ctx context.Context, req *SessionRequest) (*QuizState, error) {
	return invoke[QuizState](ctx, c, "StartQuiz", req)
}

func (c *Client) CurrentQuestion(ctx context.Context, req *SessionRequest) (*QuizState, error) {
	return invoke[QuizState](ctx, c, "CurrentQuestion", req)
}

func (c *Client) Answer(ctx context.Context, req *AnswerRequest) (*QuizState, error) {
	return invoke[QuizState](ctx, c, "Answer", req)
}

func (c *Client) GetTotals(ctx context.Context, req *SessionRequest) (*domain.Totals, error) {
	return invoke[domain.Totals](ctx, c, "GetTotals", req)
}

func (c *Client) SubmitScore(ctx context.Context, req *SubmitScoreRequest) (*SubmitScoreResponse, error) {
	return invoke[SubmitScoreResponse](ctx, c, "SubmitScore", req)
}

func (c *Client) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*domain.Leaderboard, error) {
	return invoke[domain.Leaderboard](ctx, c, "GetLeaderboard", req)
}
