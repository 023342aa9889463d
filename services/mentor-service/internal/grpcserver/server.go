//go:build protogen

package grpcserver

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"

	mentorv1 "mentorhub/protos/gen/mentor/v1"
	"mentorhub/services/mentor-service/internal/storage"
)

type server struct {
	mentorv1.UnimplementedMentorServiceServer
	mentors *storage.Repository
	rules   *storage.AvailabilityRepository
}

func Register(grpcServer *grpc.Server, mentors *storage.Repository, rules *storage.AvailabilityRepository) {
	mentorv1.RegisterMentorServiceServer(grpcServer, &server{mentors: mentors, rules: rules})
}

// GetAvailabilityRules is the live-read path used by the booking service
// before its projection has caught up.
func (s *server) GetAvailabilityRules(ctx context.Context, req *mentorv1.AvailabilityRulesRequest) (*mentorv1.AvailabilityRulesResponse, error) {
	resp := &mentorv1.AvailabilityRulesResponse{
		MentorId: req.GetMentorId(),
		TimeZone: "UTC",
		AsOf:     timestamppb.New(time.Now().UTC()),
	}
	if req.GetMentorId() == "" {
		return resp, nil
	}

	if mentor, err := s.mentors.Get(ctx, req.GetMentorId()); err == nil && mentor.TimeZone != "" {
		resp.TimeZone = mentor.TimeZone
	}

	rules, err := s.rules.ListRules(ctx, req.GetMentorId())
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, &mentorv1.AvailabilityRule{
			Id:          rule.ID,
			DayOfWeek:   int32(rule.DayOfWeek),
			StartTime:   clock(rule.StartMinute),
			EndTime:     clock(rule.EndMinute),
			IsAvailable: rule.IsAvailable,
		})
	}
	return resp, nil
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
