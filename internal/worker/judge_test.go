package worker

import "testing"

func TestCalculateOptimalWorkers(t *testing.T) {
	tests := []struct {
		name           string
		minWorkers     int
		maxWorkers     int
		queueSize      int
		activeWorkers  int
		currentWorkers int
		want           int
	}{
		{
			name:           "empty queue scales to minimum",
			minWorkers:     2,
			maxWorkers:     20,
			queueSize:      0,
			activeWorkers:  0,
			currentWorkers: 5,
			want:           2,
		},
		{
			name:           "high load scales up by five",
			minWorkers:     2,
			maxWorkers:     20,
			queueSize:      30,
			activeWorkers:  5,
			currentWorkers: 5,
			want:           10,
		},
		{
			name:           "high load clamps to max workers",
			minWorkers:     2,
			maxWorkers:     12,
			queueSize:      100,
			activeWorkers:  5,
			currentWorkers: 10,
			want:           12,
		},
		{
			name:           "low load scales down by three",
			minWorkers:     2,
			maxWorkers:     20,
			queueSize:      1,
			activeWorkers:  4,
			currentWorkers: 8,
			want:           5,
		},
		{
			name:           "low load never scales below minimum",
			minWorkers:     4,
			maxWorkers:     20,
			queueSize:      0,
			activeWorkers:  0,
			currentWorkers: 5,
			want:           4,
		},
		{
			name:           "moderate load holds steady",
			minWorkers:     2,
			maxWorkers:     20,
			queueSize:      6,
			activeWorkers:  4,
			currentWorkers: 6,
			want:           6,
		},
		{
			name:           "never scales below busy worker count",
			minWorkers:     2,
			maxWorkers:     20,
			queueSize:      1,
			activeWorkers:  8,
			currentWorkers: 8,
			want:           8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jp := &JudgePool{minWorkers: tt.minWorkers, maxWorkers: tt.maxWorkers}
			got := jp.calculateOptimalWorkers(tt.queueSize, tt.activeWorkers, tt.currentWorkers)
			if got != tt.want {
				t.Errorf("calculateOptimalWorkers(%d, %d, %d) = %d, want %d",
					tt.queueSize, tt.activeWorkers, tt.currentWorkers, got, tt.want)
			}
		})
	}
}

func TestCheckOutput_ExactMatchWithoutChecker(t *testing.T) {
	jw := &JudgeWorker{}

	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"identical output", "42\n", "42\n", true},
		{"trims surrounding whitespace", "  42  \n", "42", true},
		{"different output", "42", "43", false},
		{"empty vs whitespace", "", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, message := jw.checkOutput("", tt.expected, tt.actual, "")
			if correct != tt.want {
				t.Errorf("checkOutput() correct = %v, want %v", correct, tt.want)
			}
			if message != "" {
				t.Errorf("checkOutput() message = %q, want empty for exact-match path", message)
			}
		})
	}
}
