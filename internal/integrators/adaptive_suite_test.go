package integrators

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegratorSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Integrators Suite")
}
