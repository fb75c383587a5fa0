// Copyright 2025 go-ecsgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diag

import "go.uber.org/zap"

// ZapSink logs events through a zap logger. Errors log at error level,
// warnings at warn, and infos at info.
type ZapSink struct {
	Logger *zap.Logger
}

func (s ZapSink) Report(e Event) {
	fields := []zap.Field{
		zap.String("code", e.Code.String()),
		zap.String("pos", e.Pos.String()),
	}
	switch e.Severity {
	case Error:
		s.Logger.Error(e.Message, fields...)
	case Warning:
		s.Logger.Warn(e.Message, fields...)
	default:
		s.Logger.Info(e.Message, fields...)
	}
}
