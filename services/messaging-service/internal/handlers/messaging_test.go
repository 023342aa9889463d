package handlers

import "testing"

func TestConversationParties(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		sender     string
		recipient  string
		wantMember string
		wantMentor string
	}{
		{"member writes mentor", "member", "u1", "m1", "u1", "m1"},
		{"mentor replies", "mentor", "m1", "u1", "u1", "m1"},
		{"missing role treated as member", "", "u2", "m2", "u2", "m2"},
		{"admin treated as member", "admin", "a1", "m3", "a1", "m3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member, mentor := conversationParties(tt.role, tt.sender, tt.recipient)
			if member != tt.wantMember || mentor != tt.wantMentor {
				t.Fatalf("got (%s, %s), want (%s, %s)", member, mentor, tt.wantMember, tt.wantMentor)
			}
		})
	}
}
