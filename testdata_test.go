package dependr

import (
	"github.com/GESkunkworks/dependr/pce"
)

var testLabels = []pce.Label{
	{Href: "/orgs/1/labels/1", Key: "app", Value: "web"},
	{Href: "/orgs/1/labels/2", Key: "app", Value: "db"},
	{Href: "/orgs/1/labels/3", Key: "env", Value: "prod"},
	{Href: "/orgs/1/labels/4", Key: "env", Value: "dev"},
	{Href: "/orgs/1/labels/5", Key: "role", Value: "frontend"},
}

func workload(name string, hrefs ...string) *pce.Workload {
	w := &pce.Workload{Href: "/orgs/1/workloads/" + name, Name: name}
	for _, h := range hrefs {
		w.Labels = append(w.Labels, pce.Href{Href: h})
	}
	return w
}

func flow(src, dst string, srcW, dstW *pce.Workload, port, proto int, decision string) pce.TrafficFlow {
	return pce.TrafficFlow{
		Src:            pce.Endpoint{IP: src, Workload: srcW},
		Dst:            pce.Endpoint{IP: dst, Workload: dstW},
		Service:        pce.Service{Port: port, Proto: proto},
		NumConnections: 1,
		PolicyDecision: decision,
		FlowDirection:  "outbound",
	}
}

// testFlows: web(prod) -> db(prod) twice, web(dev) -> db(prod) once,
// web(prod) -> web(prod) once, unmanaged -> web(prod) once.
func testFlows() []pce.TrafficFlow {
	webProd := workload("web1", "/orgs/1/labels/1", "/orgs/1/labels/3", "/orgs/1/labels/5")
	webProd2 := workload("web2", "/orgs/1/labels/1", "/orgs/1/labels/3")
	webDev := workload("webdev", "/orgs/1/labels/1", "/orgs/1/labels/4")
	dbProd := workload("db1", "/orgs/1/labels/2", "/orgs/1/labels/3")
	return []pce.TrafficFlow{
		flow("10.0.0.1", "10.0.1.1", webProd, dbProd, 5432, 6, pce.DecisionAllowed),
		flow("10.0.0.2", "10.0.1.1", webProd2, dbProd, 5432, 6, pce.DecisionAllowed),
		flow("10.0.2.1", "10.0.1.1", webDev, dbProd, 5432, 6, pce.DecisionPotentiallyBlocked),
		flow("10.0.0.1", "10.0.0.2", webProd, webProd2, 443, 6, pce.DecisionAllowed),
		flow("192.168.1.9", "10.0.0.1", nil, webProd, 443, 6, pce.DecisionPotentiallyBlocked),
	}
}

func testRows() []Row {
	return Flatten(testFlows(), NewLabelMap(testLabels))
}
