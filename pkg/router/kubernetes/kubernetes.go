// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package kubernetes builds routes from annotated Kubernetes Services. The
// Services are listed once at startup; the result is never refreshed.
package kubernetes

import (
	"context"
	"fmt"
	"strings"

	"github.com/mainflux/mainflux/pkg/errors"
	"github.com/mainflux/mcproxy/pkg/router"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// DefaultAnnotation lists the hostnames routed to a Service.
	DefaultAnnotation = "mcproxy.mainflux.io/hostname"

	portName = "minecraft"
)

var (
	errClientConfig = errors.New("failed to build kubernetes client config")
	errListServices = errors.New("failed to list kubernetes services")
)

// NewClient returns a clientset from the kubeconfig file at path, falling
// back to the in-cluster configuration when path is empty.
func NewClient(path string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if path != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, errors.Wrap(errClientConfig, err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(errClientConfig, err)
	}
	return cs, nil
}

// Discoverer maps annotated Services to routes.
type Discoverer struct {
	client     kubernetes.Interface
	namespace  string
	annotation string
}

// NewDiscoverer returns a Discoverer listing Services in namespace, or in all
// namespaces when namespace is empty.
func NewDiscoverer(client kubernetes.Interface, namespace, annotation string) *Discoverer {
	if annotation == "" {
		annotation = DefaultAnnotation
	}
	return &Discoverer{
		client:     client,
		namespace:  namespace,
		annotation: annotation,
	}
}

// Routes lists the Services and returns a hostname to backend mapping. Each
// annotated Service contributes one route per comma-separated hostname.
func (d *Discoverer) Routes(ctx context.Context) (map[string]string, error) {
	ns := d.namespace
	if ns == "" {
		ns = metav1.NamespaceAll
	}
	list, err := d.client.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(errListServices, err)
	}

	routes := map[string]string{}
	for i := range list.Items {
		svc := &list.Items[i]
		hosts, ok := svc.Annotations[d.annotation]
		if !ok {
			continue
		}
		port, ok := servicePort(svc)
		if !ok {
			continue
		}
		backend := fmt.Sprintf("%s.%s.svc:%d", svc.Name, svc.Namespace, port)

		set := map[string]string{}
		for _, host := range strings.Split(hosts, ",") {
			if host = strings.TrimSpace(host); host != "" {
				set[host] = backend
			}
		}
		if routes, err = router.Merge(routes, set); err != nil {
			return nil, err
		}
	}
	return routes, nil
}

// servicePort picks the port named "minecraft", else the first port.
func servicePort(svc *corev1.Service) (int32, bool) {
	if len(svc.Spec.Ports) == 0 {
		return 0, false
	}
	for _, p := range svc.Spec.Ports {
		if p.Name == portName {
			return p.Port, true
		}
	}
	return svc.Spec.Ports[0].Port, true
}
