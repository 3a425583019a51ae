package reactor_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestReactor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reactor Suite")
}
