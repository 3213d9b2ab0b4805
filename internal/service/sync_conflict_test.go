package service

import (
	"errors"
	"testing"

	"paperlib-sync-server/internal/domain"
)

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name          string
		clientVersion domain.Opt[int64]
		serverVersion int64
		want          int64
		wantErr       error
	}{
		{
			name:          "missing client version defaults to one",
			clientVersion: domain.Opt[int64]{},
			serverVersion: 1,
			want:          2,
		},
		{
			name:          "null client version defaults to one",
			clientVersion: domain.Opt[int64]{Set: true, Null: true},
			serverVersion: 2,
			wantErr:       ErrVersionConflict,
		},
		{
			name:          "equal versions are accepted",
			clientVersion: domain.Some[int64](4),
			serverVersion: 4,
			want:          5,
		},
		{
			name:          "newer client is gated but not adopted",
			clientVersion: domain.Some[int64](40),
			serverVersion: 4,
			want:          5,
		},
		{
			name:          "stale client is rejected",
			clientVersion: domain.Some[int64](3),
			serverVersion: 4,
			wantErr:       ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveVersion(tt.clientVersion, tt.serverVersion)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("resolveVersion() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveVersion() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}
