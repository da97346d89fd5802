// Copyright (c) 2021 SAP SE or an SAP affiliate company. All rights reserved. This file is licensed under the Apache Software License, v. 2 except as noted otherwise in the LICENSE file
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	. "github.com/gardener/chaos-engineering/pkg/logger"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logger Suite")
}

var _ = Describe("logrus", func() {
	AfterEach(func() {
		Logger = nil
	})

	Describe("#NewLogger", func() {
		It("should return a pointer to a Logger object ('info' level)", func() {
			logger := NewLogger(InfoLevel, FormatText)

			Expect(logger.Out).To(Equal(os.Stderr))
			Expect(logger.Level).To(Equal(logrus.InfoLevel))
			Expect(Logger).To(Equal(logger))
		})

		It("should return a pointer to a Logger object ('debug' level)", func() {
			logger := NewLogger(DebugLevel, FormatText)

			Expect(logger.Out).To(Equal(os.Stderr))
			Expect(logger.Level).To(Equal(logrus.DebugLevel))
			Expect(Logger).To(Equal(logger))
		})

		It("should return a pointer to a Logger object ('error' level)", func() {
			logger := NewLogger(ErrorLevel, FormatText)

			Expect(logger.Out).To(Equal(os.Stderr))
			Expect(logger.Level).To(Equal(logrus.ErrorLevel))
			Expect(Logger).To(Equal(logger))
		})

		It("should return a pointer to a Logger object ('json' format)", func() {
			logger := NewLogger(InfoLevel, FormatJSON)
			Expect(logger.Formatter).To(BeAssignableToTypeOf(&logrus.JSONFormatter{}))
		})

		It("should return a pointer to a Logger object ('text' format)", func() {
			logger := NewLogger(InfoLevel, FormatText)
			Expect(logger.Formatter).To(BeAssignableToTypeOf(&logrus.TextFormatter{}))
		})

		It("should return a pointer to a Logger object (default format)", func() {
			logger := NewLogger(InfoLevel, "")
			Expect(logger.Formatter).To(BeAssignableToTypeOf(&logrus.JSONFormatter{}))
		})
	})

	Describe("#NewZoneLogger", func() {
		It("should return an Entry object with a zone field", func() {
			logger := NewLogger(InfoLevel, FormatText)
			zone := "eu-west-1a"

			zoneLogger := NewZoneLogger(logger, zone, "")

			Expect(zoneLogger.Data).To(HaveKeyWithValue("zone", zone))
			Expect(zoneLogger.Data).NotTo(HaveKey("runID"))
		})

		It("should additionally carry a runID field when one is given", func() {
			logger := NewLogger(InfoLevel, FormatText)
			zone := "eu-west-1a"
			runID := "run-1234"

			zoneLogger := NewZoneLogger(logger, zone, runID)

			Expect(zoneLogger.Data).To(HaveKeyWithValue("runID", runID))
		})
	})

	Describe("#NewFieldLogger", func() {
		It("should return an Entry object with additional fields", func() {
			logger := NewLogger(InfoLevel, FormatText)
			key := "foo"
			value := "bar"

			fieldLogger := NewFieldLogger(logger, key, value)

			Expect(fieldLogger.Data).To(HaveKeyWithValue(key, value))
		})
	})

	Describe("#NewIDLogger", func() {
		It("should return an Entry object with a non-empty ID field", func() {
			logger := NewLogger(InfoLevel, FormatText)

			fieldLogger := NewIDLogger(logger)

			entry, ok := fieldLogger.(*logrus.Entry)
			Expect(ok).To(BeTrue())
			Expect(entry.Data).To(HaveKeyWithValue(IDFieldName, Not(BeEmpty())))
		})

		It("should return a different ID on every call", func() {
			logger := NewLogger(InfoLevel, FormatText)

			first := NewIDLogger(logger).(*logrus.Entry)
			second := NewIDLogger(logger).(*logrus.Entry)

			Expect(first.Data[IDFieldName]).NotTo(Equal(second.Data[IDFieldName]))
		})
	})

	Describe("#AddWriter", func() {
		It("should redirect the logger's output", func() {
			logger := AddWriter(NewLogger(InfoLevel, FormatText), GinkgoWriter)
			Expect(logger.Out).To(Equal(GinkgoWriter))
			Expect(logger.Level).To(Equal(logrus.InfoLevel))
			Expect(Logger).To(Equal(logger))
		})
	})
})
