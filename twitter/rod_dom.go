package twitter

import (
	"context"
	"encoding/json"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
)

type rodDocument struct {
	page *rod.Page
}

// NewRodDocument 用 rod 页面实现 Document，所有查询都是立即返回的，不会等待元素出现
func NewRodDocument(page *rod.Page) Document {
	return &rodDocument{page: page}
}

func (d *rodDocument) Query(ctx context.Context, selector string) (Node, bool, error) {
	has, el, err := d.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, errors.Wrapf(err, "query %s", selector)
	}
	if !has {
		return nil, false, nil
	}
	return &rodNode{el: el}, true, nil
}

func (d *rodDocument) QueryAll(ctx context.Context, selector string) ([]Node, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, errors.Wrapf(err, "query all %s", selector)
	}

	nodes := make([]Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes, nil
}

func (d *rodDocument) ScrollBy(ctx context.Context, fraction float64) error {
	_, err := d.page.Context(ctx).Eval(`(f) => window.scrollBy({top: window.innerHeight * f, behavior: 'smooth'})`, fraction)
	return errors.Wrap(err, "scroll by")
}

type rodNode struct {
	el *rod.Element
}

func (n *rodNode) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return n.el.Context(ctx).Eval(js, args...)
}

func (n *rodNode) Connected(ctx context.Context) (bool, error) {
	res, err := n.eval(ctx, `() => this.isConnected && document.body.contains(this)`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (n *rodNode) Closest(ctx context.Context, selector string) (Node, bool, error) {
	el := n.el.Context(ctx)
	obj, err := el.Evaluate(rod.Eval(`(s) => this.closest(s)`, selector).ByObject())
	if err != nil {
		return nil, false, errors.Wrapf(err, "closest %s", selector)
	}
	if obj.ObjectID == "" || obj.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
		return nil, false, nil
	}

	found, err := el.Page().ElementFromObject(obj)
	if err != nil {
		return nil, false, errors.Wrap(err, "element from object")
	}
	return &rodNode{el: found}, true, nil
}

func (n *rodNode) Query(ctx context.Context, selector string) (Node, bool, error) {
	has, el, err := n.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, errors.Wrapf(err, "query %s", selector)
	}
	if !has {
		return nil, false, nil
	}
	return &rodNode{el: el}, true, nil
}

func (n *rodNode) Visible(ctx context.Context) (bool, error) {
	res, err := n.eval(ctx, `() => this.offsetParent !== null`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (n *rodNode) Box(ctx context.Context) (Box, error) {
	res, err := n.eval(ctx, `() => {
		const r = this.getBoundingClientRect();
		return JSON.stringify({left: r.left, top: r.top, width: r.width, height: r.height});
	}`)
	if err != nil {
		return Box{}, err
	}

	var box Box
	if err := json.Unmarshal([]byte(res.Value.String()), &box); err != nil {
		return Box{}, errors.Wrap(err, "failed to unmarshal bounding box")
	}
	return box, nil
}

func (n *rodNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := n.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (n *rodNode) Text(ctx context.Context) (string, error) {
	res, err := n.eval(ctx, `() => this.textContent || ''`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (n *rodNode) DispatchMouse(ctx context.Context, ev MouseEvent) error {
	_, err := n.eval(ctx, `(type, positioned, x, y) => {
		const init = {bubbles: true, cancelable: true};
		if (positioned) {
			init.clientX = x;
			init.clientY = y;
		}
		this.dispatchEvent(new MouseEvent(type, init));
	}`, ev.Type, ev.Positioned, ev.X, ev.Y)
	return errors.Wrapf(err, "dispatch %s", ev.Type)
}

func (n *rodNode) ScrollIntoView(ctx context.Context) error {
	_, err := n.eval(ctx, `() => this.scrollIntoView({behavior: 'smooth', block: 'center'})`)
	return errors.Wrap(err, "scroll into view")
}

func (n *rodNode) Click(ctx context.Context) error {
	_, err := n.eval(ctx, `() => this.click()`)
	return errors.Wrap(err, "click")
}
