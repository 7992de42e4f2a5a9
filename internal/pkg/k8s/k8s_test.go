package k8s_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/client-go/kubernetes/fake"

	"aws-sqs-helper/internal/pkg/k8s"
)

var _ = Describe("LeaseLock", func() {
	It("targets the named lease and holds it under the identity", func() {
		c := &k8s.Client{Clientset: fake.NewSimpleClientset()}

		lock := c.LeaseLock("default", "monitor-lock", "monitor-0")
		Expect(lock.LeaseMeta.Namespace).To(Equal("default"))
		Expect(lock.LeaseMeta.Name).To(Equal("monitor-lock"))
		Expect(lock.Identity()).To(Equal("monitor-0"))
		Expect(lock.Describe()).To(Equal("default/monitor-lock"))
	})
})
