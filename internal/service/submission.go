package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contesthub-server/common/logger"
	"contesthub-server/internal/config"
	"contesthub-server/internal/model"

	"go.uber.org/zap"
)

const (
	MsgTaskAdded        = "task added"
	MsgTaskAlreadyAdded = "task already added"
)

type SubmitInput struct {
	ContestID int64
	Email     string
	Name      string
	Image     string
	Task      string
}

type SubmitOutput struct {
	Inserted bool   `json:"inserted"`
	ID       int64  `json:"id,omitempty"`
	Message  string `json:"message"`
}

type SubmissionService interface {
	// Submit 每个 (参赛者, 比赛) 至多一条作品；重复提交返回 “task already added”（非错误）
	Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error)
	// ListForOwner 仅比赛创建者可查看作品
	ListForOwner(ctx context.Context, contestID int64, owner string) ([]model.Submission, error)
}

type submissionService struct {
	submissions SubmissionStore
	payments    PaymentStore
	contests    ContestStore
}

func NewSubmissionService(submissions SubmissionStore, payments PaymentStore, contests ContestStore) SubmissionService {
	return &submissionService{submissions: submissions, payments: payments, contests: contests}
}

func (s *submissionService) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Task = strings.TrimSpace(in.Task)
	if in.ContestID <= 0 || in.Email == "" || in.Task == "" {
		return nil, fmt.Errorf("%w: contestId and task are required", ErrInvalidRequest)
	}

	c, err := s.contests.GetContest(ctx, in.ContestID)
	if err != nil {
		return nil, storeErr(err)
	}
	// 已提交过的作品优先返回，截止后重复提交也得到同样的结果
	if _, err := s.submissions.FindSubmission(ctx, in.ContestID, in.Email); err == nil {
		return &SubmitOutput{Inserted: false, Message: MsgTaskAlreadyAdded}, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if c.HasWinner() || (c.Deadline > 0 && time.Now().UnixMilli() > c.Deadline) {
		return nil, ErrContestClosed
	}

	if !config.GetFeatureFlag(config.FlagAllowUnpaidSubmit) {
		if _, err := s.payments.FindPaidPayment(ctx, in.ContestID, in.Email); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, ErrNotParticipant
			}
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
	}

	sub := &model.Submission{ContestID: in.ContestID, Email: in.Email, Name: in.Name, Image: in.Image, Task: in.Task}
	inserted, err := s.submissions.InsertSubmission(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !inserted {
		return &SubmitOutput{Inserted: false, Message: MsgTaskAlreadyAdded}, nil
	}
	logger.InfoCtx(ctx, "task submitted", zap.Int64("contest_id", in.ContestID), zap.String("email", in.Email))
	return &SubmitOutput{Inserted: true, ID: sub.ID, Message: MsgTaskAdded}, nil
}

func (s *submissionService) ListForOwner(ctx context.Context, contestID int64, owner string) ([]model.Submission, error) {
	if contestID <= 0 {
		return nil, fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}
	c, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, storeErr(err)
	}
	if c.CreatorEmail != owner {
		return nil, ErrForbidden
	}
	list, err := s.submissions.ListSubmissions(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if list == nil {
		list = []model.Submission{}
	}
	return list, nil
}
